package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/napneko/napcat-installer/internal/core"
)

// spinnerFrames cycle on each heartbeat of an operation with no known
// completion percentage.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Renderer translates core events into inline terminal output: a bounded
// progress bar for downloads, a spinner for long-running commands, and
// styled status lines. It is not a full bubbletea program; the engine runs
// in the foreground and the renderer just redraws the current line.
type Renderer struct {
	out io.Writer

	mu       sync.Mutex
	bar      progress.Model
	spinIdx  int
	lineOpen bool // an unfinished \r-rewritten line is on screen
}

// NewRenderer creates a Renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	bar := progress.New(
		progress.WithSolidFill(string(colorPrimary)),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return &Renderer{out: out, bar: bar}
}

// Events returns the callback set to hand to the core.
func (r *Renderer) Events() core.Events {
	return core.Events{
		Progress:  r.renderProgress,
		Heartbeat: r.renderHeartbeat,
		Info:      r.renderInfo,
		Warn:      r.renderWarn,
		Done:      r.renderDone,
	}
}

func (r *Renderer) renderProgress(name string, percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bar := r.bar.ViewAs(percent / 100)
	fmt.Fprintf(r.out, "\r\033[K%s %s %5.1f%%", titleStyle.Render(name), bar, percent)
	r.lineOpen = true

	if percent >= 100 {
		r.closeLine()
	}
}

func (r *Renderer) renderHeartbeat(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frame := spinnerFrames[r.spinIdx%len(spinnerFrames)]
	r.spinIdx++
	fmt.Fprintf(r.out, "\r\033[K%s %s", spinnerStyle.Render(frame), name)
	r.lineOpen = true
}

func (r *Renderer) renderInfo(msg string) {
	r.statusLine(mutedStyle.Render("•"), msg)
}

func (r *Renderer) renderWarn(msg string) {
	r.statusLine(warningStyle.Render("×"), msg)
}

func (r *Renderer) renderDone(msg string) {
	r.statusLine(successStyle.Render("√"), msg)
}

func (r *Renderer) statusLine(mark, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLine()
	fmt.Fprintf(r.out, "%s %s\n", mark, msg)
}

// closeLine finishes a \r-rewritten line so the next write starts fresh.
// Callers must hold mu.
func (r *Renderer) closeLine() {
	if r.lineOpen {
		fmt.Fprint(r.out, "\r\033[K")
		r.lineOpen = false
	}
}

// Banner renders the startup header.
func Banner() string {
	return logoStyle.Render("NapCat Installer") + "\n"
}

// RenderError formats a fatal error for the terminal.
func RenderError(err error) string {
	return errorStyle.Render("× " + err.Error())
}
