package core

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"
)

// heartbeatInterval is how often RunHeartbeat reports liveness while the
// process is still running.
const heartbeatInterval = 500 * time.Millisecond

// CmdResult captures a finished subprocess.
type CmdResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes external commands to completion. All shell-level queries
// and mutations (package queries, installs, permission changes, file
// removal) go through it, which is what makes the engine testable.
type Runner interface {
	// Run executes argv and captures its output. A start failure or
	// non-zero exit returns a *CommandError; the caller decides whether
	// that is fatal.
	Run(ctx context.Context, argv ...string) (*CmdResult, error)

	// RunStream executes argv and feeds each line of its combined output
	// to onLine as it is produced. Used for tools that report progress on
	// stderr (curl writes carriage-return separated percentage updates).
	RunStream(ctx context.Context, onLine func(line string), argv ...string) (*CmdResult, error)

	// RunHeartbeat executes argv, calling beat periodically while the
	// process runs. No completion percentage is assumed; the beat stream
	// terminates exactly when the process exits. No timeout is imposed.
	RunHeartbeat(ctx context.Context, beat func(), argv ...string) (*CmdResult, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Run(ctx context.Context, argv ...string) (*CmdResult, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return finishRun(argv, stdout.String(), stderr.String(), err)
}

func (r *ExecRunner) RunStream(ctx context.Context, onLine func(line string), argv ...string) (*CmdResult, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	pr, pw := io.Pipe()
	cmd.Stdout = io.MultiWriter(&stdout, pw)
	cmd.Stderr = io.MultiWriter(&stderr, pw)

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, &CommandError{Argv: argv, ExitCode: -1, Err: err}
	}

	lineDone := make(chan struct{})
	go func() {
		defer close(lineDone)
		scanner := bufio.NewScanner(pr)
		scanner.Split(scanProgressLines)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				onLine(line)
			}
		}
	}()

	err := cmd.Wait()
	_ = pw.Close()
	<-lineDone

	return finishRun(argv, stdout.String(), stderr.String(), err)
}

func (r *ExecRunner) RunHeartbeat(ctx context.Context, beat func(), argv ...string) (*CmdResult, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Argv: argv, ExitCode: -1, Err: err}
	}

	stop := make(chan struct{})
	ticked := make(chan struct{})
	go func() {
		defer close(ticked)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		beat() // report liveness immediately, then on each tick
		for {
			select {
			case <-ticker.C:
				beat()
			case <-stop:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(stop)
	<-ticked

	return finishRun(argv, stdout.String(), stderr.String(), err)
}

// finishRun converts an exec result into (CmdResult, error), classifying a
// non-zero exit as *CommandError while still returning the captured output.
func finishRun(argv []string, stdout, stderr string, err error) (*CmdResult, error) {
	res := &CmdResult{Stdout: stdout, Stderr: stderr}
	if err == nil {
		return res, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
		return res, &CommandError{
			Argv:     argv,
			ExitCode: res.ExitCode,
			Stdout:   stdout,
			Stderr:   stderr,
			Err:      err,
		}
	}

	// The process never started.
	res.ExitCode = -1
	return res, &CommandError{Argv: argv, ExitCode: -1, Err: err}
}

// scanProgressLines splits on \n and \r so that carriage-return progress
// updates (curl's "###  42.0%" style) arrive as individual lines.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
