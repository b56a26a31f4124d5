package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// hostAppPackageName is the name Linux QQ is registered under in the
// platform's package database.
const hostAppPackageName = "linuxqq"

// Inspector determines what is currently installed without mutating
// anything.
type Inspector struct {
	runner Runner
	cfg    *Config
}

// NewInspector creates an Inspector.
func NewInspector(runner Runner, cfg *Config) *Inspector {
	return &Inspector{runner: runner, cfg: cfg}
}

// HostAppVersion queries the platform's package database for the installed
// QQ version. Absence of the package is a normal result (installed=false),
// distinguished from a query execution failure (the query binary itself
// could not be started).
func (i *Inspector) HostAppVersion(ctx context.Context, profile *PlatformProfile) (version string, installed bool, err error) {
	var argv []string
	switch profile.Installer {
	case InstallerDpkg:
		argv = []string{"dpkg-query", "-W", "-f=${Version}", hostAppPackageName}
	case InstallerRpm:
		argv = []string{"rpm", "-q", "--qf", "%{VERSION}", hostAppPackageName}
	default:
		return "", false, &PlatformError{Reason: "unknown installer kind " + string(profile.Installer)}
	}

	res, runErr := i.runner.Run(ctx, argv...)
	if runErr != nil {
		var cmdErr *CommandError
		if errors.As(runErr, &cmdErr) && cmdErr.ExitCode > 0 {
			// The query ran but the package is not in the database.
			return "", false, nil
		}
		return "", false, fmt.Errorf("querying host app version: %w", runErr)
	}

	version = strings.TrimSpace(res.Stdout)
	if version == "" {
		return "", false, nil
	}
	return version, true, nil
}

// PayloadVersion reads the installed payload version out of its manifest.
// A missing manifest means the payload is not installed; a manifest that
// does not parse is a *ConfigError.
func (i *Inspector) PayloadVersion() (version string, installed bool, err error) {
	path := i.cfg.PayloadManifestPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading payload manifest: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return "", false, &ConfigError{Path: path, Err: fmt.Errorf("not valid JSON")}
	}

	v := gjson.GetBytes(data, "version")
	if !v.Exists() || v.String() == "" {
		return "", false, nil
	}
	return v.String(), true, nil
}
