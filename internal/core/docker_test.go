package core

import (
	"context"
	"errors"
	"testing"
)

func TestDockerInstall(t *testing.T) {
	runner := &fakeRunner{}
	cfg := DefaultConfig()

	if err := NewDockerInstaller(runner, cfg, Events{}).Install(context.Background()); err != nil {
		t.Fatalf("Install: %v", err)
	}

	want := []string{
		"which docker",
		"docker pull " + cfg.DockerImage,
		"docker run -d --name napcat --network host " + cfg.DockerImage,
	}
	got := argvJoined(runner.calls)
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDockerInstallRequiresDocker(t *testing.T) {
	runner := pathRunner() // nothing on PATH

	err := NewDockerInstaller(runner, DefaultConfig(), Events{}).Install(context.Background())
	var platErr *PlatformError
	if !errors.As(err, &platErr) {
		t.Fatalf("error = %v, want *PlatformError", err)
	}
}
