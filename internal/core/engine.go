package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// hostAppDisplayName and payloadDisplayName label the two artifacts in
// progress output.
const (
	hostAppDisplayName = "QQ"
	payloadDisplayName = "NapCat"
)

// Decide compares an artifact's local state to the remote version. A missing
// artifact is installed fresh, a version mismatch in either direction is an
// upgrade, and an exact match is skipped.
func Decide(localVersion string, installed bool, remoteVersion string) Decision {
	if !installed {
		return DecisionFreshInstall
	}
	if versionsEqual(localVersion, remoteVersion) {
		return DecisionSkip
	}
	return DecisionUpgrade
}

// versionsEqual compares two version strings as semver when both parse
// (tolerating a leading "v" and build suffixes), falling back to trimmed
// string equality otherwise.
func versionsEqual(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Equal(vb)
	}
	return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
}

func (d Decision) toState() ArtifactState {
	switch d {
	case DecisionFreshInstall:
		return StateFreshInstall
	case DecisionUpgrade:
		return StateUpgrade
	default:
		return StateSkip
	}
}

// RunReport is the outcome of one installer run.
type RunReport struct {
	Profile *PlatformProfile
	Remote  *RemoteState
	HostApp Artifact
	Payload Artifact
}

// Engine sequences a full run: platform detection, remote resolution, local
// inspection, per-artifact decisions and execution. It is strictly
// sequential; the first fatal error aborts the run with the failing
// artifact marked.
type Engine struct {
	runner    Runner
	cfg       *Config
	fetcher   *Fetcher
	resolver  *Resolver
	inspector *Inspector
	payload   *PayloadInstaller
	events    Events

	// WorkDir is where downloaded packages land before installation.
	// Defaults to /tmp.
	WorkDir string
}

// NewEngine wires an Engine from its collaborators.
func NewEngine(runner Runner, cfg *Config, events Events) *Engine {
	patcher := NewPatcher()
	return &Engine{
		runner:    runner,
		cfg:       cfg,
		fetcher:   NewFetcher(runner, events),
		resolver:  NewResolver(runner, cfg),
		inspector: NewInspector(runner, cfg),
		payload:   NewPayloadInstaller(runner, cfg, patcher, events),
		events:    events,
	}
}

// Run performs one complete install-or-upgrade pass.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	profile, err := DetectPlatform(ctx, e.runner)
	if err != nil {
		return nil, err
	}
	e.events.info(fmt.Sprintf("platform: %s/%s on %s", profile.Manager, profile.Installer, profile.Arch))

	remote, err := e.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	e.events.info(fmt.Sprintf("latest versions: QQ %s, NapCat %s", remote.HostAppVersion, remote.PayloadVersion))

	report := &RunReport{Profile: profile, Remote: remote}

	hostVer, hostInstalled, err := e.inspector.HostAppVersion(ctx, profile)
	if err != nil {
		return report, err
	}
	report.HostApp = Artifact{
		Name:          hostAppDisplayName,
		RemoteVersion: remote.HostAppVersion,
		LocalVersion:  hostVer,
		Installed:     hostInstalled,
		State:         Decide(hostVer, hostInstalled, remote.HostAppVersion).toState(),
	}

	payloadVer, payloadInstalled, err := e.inspector.PayloadVersion()
	if err != nil {
		return report, err
	}
	report.Payload = Artifact{
		Name:          payloadDisplayName,
		RemoteVersion: remote.PayloadVersion,
		LocalVersion:  payloadVer,
		Installed:     payloadInstalled,
		State:         Decide(payloadVer, payloadInstalled, remote.PayloadVersion).toState(),
	}

	if err := e.runHostApp(ctx, report, profile, remote); err != nil {
		report.HostApp.State = StateFailed
		return report, err
	}

	if err := e.runPayload(ctx, report, remote); err != nil {
		report.Payload.State = StateFailed
		return report, err
	}

	// The packet server setting propagates on every run the payload is
	// present, not only on installs. Done covers skips too: a skipped
	// payload was already installed.
	if e.cfg.PacketServer != "" && report.Payload.State == StateDone {
		if err := e.payload.PatchPacketServer(e.cfg.PacketServer); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (e *Engine) runHostApp(ctx context.Context, report *RunReport, profile *PlatformProfile, remote *RemoteState) error {
	switch report.HostApp.State {
	case StateSkip:
		// Skipping is a completed outcome: nothing was needed.
		e.events.info(fmt.Sprintf("QQ %s already current, skipping", report.HostApp.LocalVersion))
		report.HostApp.State = StateDone
		return nil
	case StateFreshInstall:
		e.events.info("QQ not installed, installing " + remote.HostAppVersion)
	case StateUpgrade:
		e.events.info(fmt.Sprintf("QQ %s -> %s", report.HostApp.LocalVersion, remote.HostAppVersion))
	}

	url, err := HostAppDownloadURL(e.cfg, remote, profile)
	if err != nil {
		return err
	}

	suffix, err := profile.DownloadSuffix()
	if err != nil {
		return err
	}
	dest := filepath.Join(e.workDir(), "QQ"+filepath.Ext(suffix))

	if _, err := e.fetcher.Fetch(ctx, DownloadTask{
		PrimaryURL:  url,
		Dest:        dest,
		DisplayName: hostAppDisplayName,
	}); err != nil {
		return err
	}

	if err := e.installHostApp(ctx, profile, dest); err != nil {
		return err
	}
	e.cleanup(ctx, dest)

	report.HostApp.State = StateDone
	e.events.done("QQ " + remote.HostAppVersion + " installed")
	return nil
}

// installHostApp installs the downloaded package with the platform's own
// tooling. On apt systems the runtime dependencies are installed
// explicitly; libasound2 was renamed to libasound2t64 on newer releases, so
// its failure is tolerated once and the replacement tried instead.
func (e *Engine) installHostApp(ctx context.Context, profile *PlatformProfile, pkgPath string) error {
	switch profile.Manager {
	case ManagerYum:
		_, err := e.runner.RunHeartbeat(ctx, e.beat("installing QQ"), "yum", "localinstall", "-y", pkgPath)
		return err

	case ManagerApt:
		if _, err := e.runner.RunHeartbeat(ctx, e.beat("installing QQ"), "apt-get", "install", "-f", "-y", pkgPath); err != nil {
			return err
		}
		for _, dep := range []string{"libnss3", "libgbm1"} {
			if _, err := e.runner.RunHeartbeat(ctx, e.beat("installing "+dep), "apt-get", "install", "-y", dep); err != nil {
				return err
			}
		}
		if _, err := e.runner.RunHeartbeat(ctx, e.beat("installing libasound2"), "apt-get", "install", "-y", "libasound2"); err != nil {
			e.events.warn("libasound2 unavailable, trying libasound2t64")
			if _, err := e.runner.RunHeartbeat(ctx, e.beat("installing libasound2t64"), "apt-get", "install", "-y", "libasound2t64"); err != nil {
				return err
			}
		}
		return nil
	}
	return &PlatformError{Reason: "unknown package manager " + string(profile.Manager)}
}

func (e *Engine) runPayload(ctx context.Context, report *RunReport, remote *RemoteState) error {
	switch report.Payload.State {
	case StateSkip:
		e.events.info(fmt.Sprintf("NapCat %s already current, skipping", report.Payload.LocalVersion))
		report.Payload.State = StateDone
		return nil
	case StateFreshInstall:
		e.events.info("NapCat not installed, installing " + remote.PayloadVersion)
	case StateUpgrade:
		e.events.info(fmt.Sprintf("NapCat %s -> %s", report.Payload.LocalVersion, remote.PayloadVersion))
	}

	dest := filepath.Join(e.workDir(), e.cfg.PayloadAssetName)
	task := PayloadDownloadTask(e.cfg, remote, dest)

	if _, err := e.fetcher.Fetch(ctx, task); err != nil {
		return err
	}

	if err := e.payload.Install(ctx, dest); err != nil {
		return err
	}
	e.cleanup(ctx, dest)

	report.Payload.State = StateDone
	e.events.done("NapCat " + remote.PayloadVersion + " installed")
	return nil
}

// cleanup removes a downloaded package. Failure is reported but never
// aborts the run; the install already succeeded.
func (e *Engine) cleanup(ctx context.Context, path string) {
	if _, err := e.runner.Run(ctx, "rm", "-f", path); err != nil {
		e.events.warn("could not remove " + path + ", please delete it manually")
	}
}

func (e *Engine) beat(name string) func() {
	return func() { e.events.heartbeat(name) }
}

func (e *Engine) workDir() string {
	if e.WorkDir != "" {
		return e.WorkDir
	}
	return "/tmp"
}
