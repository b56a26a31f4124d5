package core

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		local     string
		installed bool
		remote    string
		want      Decision
	}{
		{name: "not installed", local: "", installed: false, remote: "v4.2.5", want: DecisionFreshInstall},
		{name: "exact match", local: "4.2.5", installed: true, remote: "4.2.5", want: DecisionSkip},
		{name: "v-prefix match", local: "4.2.5", installed: true, remote: "v4.2.5", want: DecisionSkip},
		{name: "older local", local: "4.2.4", installed: true, remote: "v4.2.5", want: DecisionUpgrade},
		{name: "newer local", local: "4.3.0", installed: true, remote: "v4.2.5", want: DecisionUpgrade},
		{name: "non-semver equal", local: "3.2.15-30366", installed: true, remote: "3.2.15-30366", want: DecisionSkip},
		{name: "non-semver differs", local: "3.2.15-30366", installed: true, remote: "3.2.16-31001", want: DecisionUpgrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.local, tt.installed, tt.remote); got != tt.want {
				t.Errorf("Decide(%q, %v, %q) = %v, want %v", tt.local, tt.installed, tt.remote, got, tt.want)
			}
		})
	}
}

func TestInstallHostAppAptSequence(t *testing.T) {
	tests := []struct {
		name          string
		libasoundFail bool
		want          []string
	}{
		{
			name: "libasound2 available",
			want: []string{
				"apt-get install -f -y /tmp/QQ.deb",
				"apt-get install -y libnss3",
				"apt-get install -y libgbm1",
				"apt-get install -y libasound2",
			},
		},
		{
			name:          "libasound2 renamed",
			libasoundFail: true,
			want: []string{
				"apt-get install -f -y /tmp/QQ.deb",
				"apt-get install -y libnss3",
				"apt-get install -y libgbm1",
				"apt-get install -y libasound2",
				"apt-get install -y libasound2t64",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{
				respond: func(argv []string) (*CmdResult, error) {
					if tt.libasoundFail && argv[len(argv)-1] == "libasound2" {
						return &CmdResult{ExitCode: 100}, cmdFailure(argv, 100)
					}
					return &CmdResult{}, nil
				},
			}
			e := NewEngine(runner, DefaultConfig(), Events{})

			profile := &PlatformProfile{Manager: ManagerApt, Installer: InstallerDpkg, Arch: "amd64"}
			if err := e.installHostApp(context.Background(), profile, "/tmp/QQ.deb"); err != nil {
				t.Fatalf("installHostApp: %v", err)
			}

			got := argvJoined(runner.calls)
			if len(got) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("call %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestInstallHostAppYum(t *testing.T) {
	runner := &fakeRunner{}
	e := NewEngine(runner, DefaultConfig(), Events{})

	profile := &PlatformProfile{Manager: ManagerYum, Installer: InstallerRpm, Arch: "amd64"}
	if err := e.installHostApp(context.Background(), profile, "/tmp/QQ.rpm"); err != nil {
		t.Fatalf("installHostApp: %v", err)
	}

	got := argvJoined(runner.calls)
	if len(got) != 1 || got[0] != "yum localinstall -y /tmp/QQ.rpm" {
		t.Errorf("calls = %v, want a single yum localinstall", got)
	}
}

// engineRunner scripts a full run: platform probes, metadata queries,
// version queries and downloads.
func engineRunner(t *testing.T, cfg *Config, installedQQ string, payloadZip map[string]string) *fakeRunner {
	t.Helper()
	r := &fakeRunner{}
	r.respond = func(argv []string) (*CmdResult, error) {
		cmd := strings.Join(argv, " ")
		switch {
		case cmd == "which apt-get" || cmd == "which dpkg":
			return &CmdResult{Stdout: "/usr/bin/" + argv[1]}, nil
		case cmd == "which yum" || cmd == "which rpm":
			return &CmdResult{ExitCode: 1}, cmdFailure(argv, 1)

		case strings.HasPrefix(cmd, "curl -s --fail "):
			switch argv[len(argv)-1] {
			case cfg.NapCatMetaURL:
				return &CmdResult{Stdout: `{"tag_name": "v4.2.5"}`}, nil
			case cfg.QQMetaURL:
				return &CmdResult{Stdout: `{"linuxVersion": "3.2.15-30366", "linuxVerHash": "abc123"}`}, nil
			}
			t.Fatalf("unexpected metadata query: %s", cmd)

		case argv[0] == "dpkg-query":
			if installedQQ == "" {
				return &CmdResult{ExitCode: 1}, cmdFailure(argv, 1)
			}
			return &CmdResult{Stdout: installedQQ}, nil

		case argv[0] == "curl": // download
			dest := argv[len(argv)-1]
			if strings.HasSuffix(dest, ".zip") {
				buildZip(t, dest, payloadZip)
			} else {
				writeFile(t, dest, "package bytes")
			}
			return &CmdResult{}, nil
		}
		return &CmdResult{}, nil
	}
	return r
}

func TestEngineRunSkipsWhenCurrent(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skip("platform detection requires amd64 or arm64")
	}

	cfg := testConfig(t)
	writeFile(t, cfg.PayloadManifestPath(), `{"version": "4.2.5"}`)

	runner := engineRunner(t, cfg, "3.2.15-30366", nil)
	report, err := NewEngine(runner, cfg, Events{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A skipped artifact resolves to done: the run completed with nothing
	// to do, it did not stall in the skip decision.
	if report.HostApp.State != StateDone {
		t.Errorf("host app state = %v, want done", report.HostApp.State)
	}
	if report.Payload.State != StateDone {
		t.Errorf("payload state = %v, want done", report.Payload.State)
	}

	for _, call := range argvJoined(runner.calls) {
		if strings.HasPrefix(call, "apt-get") || strings.HasPrefix(call, "yum") ||
			strings.Contains(call, " -o ") {
			t.Errorf("skip run issued a mutating command: %s", call)
		}
	}
}

func TestEngineRunSkipStillPatchesPacketServer(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skip("platform detection requires amd64 or arm64")
	}

	cfg := testConfig(t)
	cfg.PacketServer = "10.0.0.1:8086"
	writeFile(t, cfg.PayloadManifestPath(), `{"version": "4.2.5"}`)
	writeFile(t, cfg.PayloadConfigPath(), `{"packetServer": "", "fileLog": true}`)

	userCopy := filepath.Join(strings.TrimSuffix(cfg.UserHomeGlobs[0], "*"), "alice",
		".config", "QQ", "NapCat", "config", "napcat.json")
	writeFile(t, userCopy, `{"packetServer": "stale"}`)

	runner := engineRunner(t, cfg, "3.2.15-30366", nil)
	report, err := NewEngine(runner, cfg, Events{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Payload.State != StateDone {
		t.Errorf("payload state = %v, want done", report.Payload.State)
	}

	// Both artifacts were current, so nothing may be downloaded or
	// installed; the setting still propagates.
	for _, call := range argvJoined(runner.calls) {
		if strings.HasPrefix(call, "apt-get") || strings.HasPrefix(call, "yum") ||
			strings.Contains(call, " -o ") {
			t.Errorf("skip run issued a mutating command: %s", call)
		}
	}

	for _, path := range []string{cfg.PayloadConfigPath(), userCopy} {
		if got := gjson.Get(readFile(t, path), "packetServer").String(); got != "10.0.0.1:8086" {
			t.Errorf("%s: packetServer = %q, want %q", path, got, "10.0.0.1:8086")
		}
	}
	if !gjson.Get(readFile(t, cfg.PayloadConfigPath()), "fileLog").Bool() {
		t.Error("unrelated payload config key was not preserved")
	}
}

func TestEngineRunFreshInstall(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skip("platform detection requires amd64 or arm64")
	}

	cfg := testConfig(t)
	cfg.PacketServer = "10.0.0.1:8086"
	// The host tree exists as if the QQ package just laid it down.
	writeFile(t, cfg.AppManifestPath(), `{"name": "qq", "main": "./index.js"}`)

	runner := engineRunner(t, cfg, "", map[string]string{
		"napcat.mjs":   "code",
		"package.json": `{"version": "4.2.5"}`,
	})

	engine := NewEngine(runner, cfg, Events{})
	engine.WorkDir = t.TempDir()

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.HostApp.State != StateDone {
		t.Errorf("host app state = %v, want done", report.HostApp.State)
	}
	if report.Payload.State != StateDone {
		t.Errorf("payload state = %v, want done", report.Payload.State)
	}

	calls := argvJoined(runner.calls)
	var sawInstall, sawCleanup bool
	for _, call := range calls {
		if strings.HasPrefix(call, "apt-get install -f -y ") {
			sawInstall = true
		}
		if strings.HasPrefix(call, "rm -f ") {
			sawCleanup = true
		}
	}
	if !sawInstall {
		t.Errorf("no package install command issued:\n%s", strings.Join(calls, "\n"))
	}
	if !sawCleanup {
		t.Error("downloaded packages were not cleaned up")
	}

	if got := readFile(t, filepath.Join(cfg.PayloadDir(), "napcat.mjs")); got != "code" {
		t.Error("payload was not extracted into the host tree")
	}
	if got := gjson.Get(readFile(t, cfg.AppManifestPath()), "main").String(); got != "./loadNapCat.js" {
		t.Errorf("app manifest main = %q, want hook", got)
	}
}

func TestEngineRunUpgradesOutdatedPayloadOnly(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skip("platform detection requires amd64 or arm64")
	}

	cfg := testConfig(t)
	writeFile(t, cfg.AppManifestPath(), `{"main": "./index.js"}`)
	writeFile(t, cfg.PayloadManifestPath(), `{"version": "4.1.0"}`)
	writeFile(t, cfg.PayloadConfigPath(), `{"packetServer": "kept"}`)

	runner := engineRunner(t, cfg, "3.2.15-30366", map[string]string{
		"napcat.mjs":   "new",
		"package.json": `{"version": "4.2.5"}`,
	})

	engine := NewEngine(runner, cfg, Events{})
	engine.WorkDir = t.TempDir()

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.HostApp.State != StateDone {
		t.Errorf("host app state = %v, want done", report.HostApp.State)
	}
	if report.Payload.State != StateDone {
		t.Errorf("payload state = %v, want done", report.Payload.State)
	}

	for _, call := range argvJoined(runner.calls) {
		if strings.HasPrefix(call, "apt-get install") {
			t.Errorf("current host app was reinstalled: %s", call)
		}
	}

	if got := gjson.Get(readFile(t, cfg.PayloadConfigPath()), "packetServer").String(); got != "kept" {
		t.Error("payload config did not survive the upgrade")
	}
}
