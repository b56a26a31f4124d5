package core

import (
	"context"
	"runtime"
)

// DetectPlatform probes the PATH for a recognized package manager and
// package installer. The result is computed once per run and treated as
// immutable. Returns *PlatformError when neither candidate of a category is
// discoverable.
func DetectPlatform(ctx context.Context, runner Runner) (*PlatformProfile, error) {
	profile := &PlatformProfile{Arch: normalizeArch(runtime.GOARCH)}
	if profile.Arch == "" {
		return nil, &PlatformError{Reason: "unsupported architecture " + runtime.GOARCH}
	}

	switch {
	case binaryOnPath(ctx, runner, "apt-get"):
		profile.Manager = ManagerApt
	case binaryOnPath(ctx, runner, "yum"):
		profile.Manager = ManagerYum
	default:
		return nil, &PlatformError{Reason: "no package manager found (need apt-get or yum)"}
	}

	switch {
	case binaryOnPath(ctx, runner, "dpkg"):
		profile.Installer = InstallerDpkg
	case binaryOnPath(ctx, runner, "rpm"):
		profile.Installer = InstallerRpm
	default:
		return nil, &PlatformError{Reason: "no package installer found (need dpkg or rpm)"}
	}

	return profile, nil
}

func binaryOnPath(ctx context.Context, runner Runner, name string) bool {
	_, err := runner.Run(ctx, "which", name)
	return err == nil
}

func normalizeArch(goarch string) string {
	switch goarch {
	case "amd64", "arm64":
		return goarch
	default:
		return ""
	}
}
