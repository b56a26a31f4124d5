// Package core implements the installer's decision and execution logic.
// It has zero UI dependencies and is independently testable: everything
// that touches the terminal goes through the Events callbacks, and
// everything that touches a subprocess goes through the Runner interface.
package core

// ManagerKind identifies the system package manager used for dependency
// installation.
type ManagerKind string

const (
	ManagerApt ManagerKind = "apt-get"
	ManagerYum ManagerKind = "yum"
)

// InstallerKind identifies the low-level package installer, which selects
// the download suffix (.deb vs .rpm) and the install command.
type InstallerKind string

const (
	InstallerDpkg InstallerKind = "dpkg"
	InstallerRpm  InstallerKind = "rpm"
)

// PlatformProfile describes the target machine. Detected once per run and
// immutable afterwards.
type PlatformProfile struct {
	Manager   ManagerKind
	Installer InstallerKind
	Arch      string // normalized: "amd64" or "arm64"
}

// RemoteState is the result of resolving both version metadata endpoints.
type RemoteState struct {
	PayloadVersion string // NapCat release tag, e.g. "v4.2.5"
	HostAppVersion string // Linux QQ version, e.g. "3.2.15-30366"
	HostAppHash    string // content hash used to build the QQ download URL
}

// Decision is the per-artifact outcome of comparing local vs remote state.
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionFreshInstall
	DecisionUpgrade
)

func (d Decision) String() string {
	switch d {
	case DecisionFreshInstall:
		return "install"
	case DecisionUpgrade:
		return "upgrade"
	default:
		return "skip"
	}
}

// ArtifactState tracks an artifact through the run.
type ArtifactState int

const (
	StateUnevaluated ArtifactState = iota
	StateSkip
	StateFreshInstall
	StateUpgrade
	StateDone
	StateFailed
)

// Artifact is one managed unit of software: the host application package or
// the payload bundle. Built fresh per run from network and filesystem
// probes; never persisted.
type Artifact struct {
	Name          string
	RemoteVersion string
	LocalVersion  string // empty when not installed
	Installed     bool
	State         ArtifactState
}

// DownloadTask describes one resilient transfer. Mirrors are tried strictly
// in order, each only after the previous candidate failed.
type DownloadTask struct {
	PrimaryURL  string
	Mirrors     []string
	Dest        string
	DisplayName string
}

// FetchResult reports a completed transfer. URL is the source that
// ultimately succeeded (primary or one of the mirrors).
type FetchResult struct {
	URL              string
	BytesTransferred int64
}

// Events carries the presentation callbacks the core emits progress through.
// Any field may be nil; the core performs no logic based on them.
type Events struct {
	// Progress reports a bounded completion percentage (0-100) for a
	// transfer identified by name.
	Progress func(name string, percent float64)

	// Heartbeat reports liveness for an operation of indeterminate
	// duration. It stops firing exactly when the operation's process exits.
	Heartbeat func(name string)

	// Info, Warn and Done report run milestones.
	Info func(msg string)
	Warn func(msg string)
	Done func(msg string)
}

func (e Events) progress(name string, percent float64) {
	if e.Progress != nil {
		e.Progress(name, percent)
	}
}

func (e Events) heartbeat(name string) {
	if e.Heartbeat != nil {
		e.Heartbeat(name)
	}
}

func (e Events) info(msg string) {
	if e.Info != nil {
		e.Info(msg)
	}
}

func (e Events) warn(msg string) {
	if e.Warn != nil {
		e.Warn(msg)
	}
}

func (e Events) done(msg string) {
	if e.Done != nil {
		e.Done(msg)
	}
}
