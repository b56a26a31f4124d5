package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// napcatRelease is the parsed payload of the NapCat release endpoint.
type napcatRelease struct {
	TagName string `json:"tag_name"`
}

// qqVersionInfo is the parsed payload of the QQ version endpoint.
type qqVersionInfo struct {
	LinuxVersion string `json:"linuxVersion"`
	LinuxVerHash string `json:"linuxVerHash"`
}

// Resolver queries the two remote metadata endpoints for the latest
// available versions. Network I/O is delegated to curl through the Runner;
// any unreachable endpoint or non-parsing payload is a *RemoteError and
// there is no retry at this layer.
type Resolver struct {
	runner Runner
	cfg    *Config
}

// NewResolver creates a Resolver using the endpoints from cfg.
func NewResolver(runner Runner, cfg *Config) *Resolver {
	return &Resolver{runner: runner, cfg: cfg}
}

// Resolve fetches both endpoints and returns the combined remote state.
func (r *Resolver) Resolve(ctx context.Context) (*RemoteState, error) {
	var release napcatRelease
	if err := r.fetchJSON(ctx, r.cfg.NapCatMetaURL, &release); err != nil {
		return nil, err
	}
	if release.TagName == "" {
		return nil, &RemoteError{
			Endpoint: r.cfg.NapCatMetaURL,
			Err:      fmt.Errorf("response is missing tag_name"),
		}
	}

	var qq qqVersionInfo
	if err := r.fetchJSON(ctx, r.cfg.QQMetaURL, &qq); err != nil {
		return nil, err
	}
	if qq.LinuxVersion == "" || qq.LinuxVerHash == "" {
		return nil, &RemoteError{
			Endpoint: r.cfg.QQMetaURL,
			Err:      fmt.Errorf("response is missing linuxVersion or linuxVerHash"),
		}
	}

	return &RemoteState{
		PayloadVersion: release.TagName,
		HostAppVersion: qq.LinuxVersion,
		HostAppHash:    qq.LinuxVerHash,
	}, nil
}

func (r *Resolver) fetchJSON(ctx context.Context, url string, out any) error {
	res, err := r.runner.Run(ctx, "curl", "-s", "--fail", url)
	if err != nil {
		return &RemoteError{Endpoint: url, Err: err}
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), out); err != nil {
		return &RemoteError{Endpoint: url, Err: err}
	}
	return nil
}

// DownloadSuffix returns the QQ package filename suffix selected by the
// platform's installer kind and architecture.
func (p *PlatformProfile) DownloadSuffix() (string, error) {
	switch {
	case p.Installer == InstallerDpkg && p.Arch == "amd64":
		return "_amd64.deb", nil
	case p.Installer == InstallerRpm && p.Arch == "amd64":
		return "_x86_64.rpm", nil
	case p.Installer == InstallerDpkg && p.Arch == "arm64":
		return "_arm64.deb", nil
	case p.Installer == InstallerRpm && p.Arch == "arm64":
		return "_aarch64.rpm", nil
	}
	return "", &PlatformError{
		Reason: fmt.Sprintf("no package for installer %s on %s", p.Installer, p.Arch),
	}
}

// HostAppDownloadURL builds the full QQ package URL for this platform:
// {base}/{hash}/linuxqq_{version}{suffix}.
func HostAppDownloadURL(cfg *Config, remote *RemoteState, profile *PlatformProfile) (string, error) {
	suffix, err := profile.DownloadSuffix()
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(cfg.QQDownloadBase, "/")
	return fmt.Sprintf("%s/%s/linuxqq_%s%s", base, remote.HostAppHash, remote.HostAppVersion, suffix), nil
}

// PayloadDownloadTask builds the NapCat bundle download task, expanding the
// configured mirror prefixes into full mirror URLs in order.
func PayloadDownloadTask(cfg *Config, remote *RemoteState, dest string) DownloadTask {
	primary := fmt.Sprintf("%s/releases/download/%s/%s",
		strings.TrimRight(cfg.PayloadRepoURL, "/"), remote.PayloadVersion, cfg.PayloadAssetName)

	mirrors := make([]string, 0, len(cfg.MirrorPrefixes))
	for _, prefix := range cfg.MirrorPrefixes {
		mirrors = append(mirrors, strings.TrimRight(prefix, "/")+"/"+primary)
	}

	return DownloadTask{
		PrimaryURL:  primary,
		Mirrors:     mirrors,
		Dest:        dest,
		DisplayName: "NapCat",
	}
}
