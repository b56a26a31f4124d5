package core

import (
	"context"
	"fmt"
)

// dockerContainerName is the fixed name the payload container runs under.
const dockerContainerName = "napcat"

// DockerInstaller is the containerized install strategy: instead of touching
// the host tree it pulls the prebuilt image and starts it on the host
// network.
type DockerInstaller struct {
	runner Runner
	cfg    *Config
	events Events
}

// NewDockerInstaller creates a DockerInstaller.
func NewDockerInstaller(runner Runner, cfg *Config, events Events) *DockerInstaller {
	return &DockerInstaller{runner: runner, cfg: cfg, events: events}
}

// Install pulls the configured image and starts the container. A machine
// without the docker CLI is an unsupported platform for this strategy.
func (d *DockerInstaller) Install(ctx context.Context) error {
	if !binaryOnPath(ctx, d.runner, "docker") {
		return &PlatformError{Reason: "docker not found on PATH"}
	}

	d.events.info("pulling " + d.cfg.DockerImage)
	if _, err := d.runner.RunHeartbeat(ctx, func() { d.events.heartbeat("pulling image") }, "docker", "pull", d.cfg.DockerImage); err != nil {
		return fmt.Errorf("pulling image: %w", err)
	}

	d.events.info("starting container " + dockerContainerName)
	if _, err := d.runner.Run(ctx,
		"docker", "run", "-d",
		"--name", dockerContainerName,
		"--network", "host",
		d.cfg.DockerImage,
	); err != nil {
		return fmt.Errorf("starting container: %w", err)
	}

	d.events.done("NapCat container started")
	return nil
}
