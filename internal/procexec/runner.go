package procexec

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

const (
	// outputTailBytes bounds how much combined output is kept in diagnostics.
	outputTailBytes = 4096
	// captureBytes bounds how much of each stream is held while a tool runs.
	captureBytes = 64 << 10
)

// Command describes one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string   // required; the process working directory is never changed
	Env  []string // appended to os.Environ()
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string // trailing bytes only for long-running tools
	Stderr   string
	Duration time.Duration
}

// Output returns stdout and stderr combined.
func (r Result) Output() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Tail returns the last part of the combined output for diagnostics.
func (r Result) Tail() string {
	return Tail(r.Output(), outputTailBytes)
}

// Tail keeps at most n trailing bytes of s, starting on a rune boundary.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + s[cut:]
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	max       int
	buf       []byte
	truncated bool
}

func newTailWriter(limit int) *tailWriter {
	return &tailWriter{max: limit}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n >= w.max {
		w.buf = append(w.buf[:0], p[n-w.max:]...)
		w.truncated = true
		return n, nil
	}
	if over := len(w.buf) + n - w.max; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
		w.truncated = true
	}
	w.buf = append(w.buf, p...)
	return n, nil
}

// String returns the retained bytes. After truncation a partial leading
// rune is dropped.
func (w *tailWriter) String() string {
	b := w.buf
	if w.truncated {
		for len(b) > 0 && !utf8.RuneStart(b[0]) {
			b = b[1:]
		}
	}
	return string(b)
}

// Runner executes commands. Implementations must honour ctx cancellation.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError is returned when the command ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

// ExecRunner runs commands with os/exec. Each child is placed in its own
// process group so cancellation terminates the tool and everything it spawned.
type ExecRunner struct {
	// WaitDelay bounds how long output pipes are drained after cancellation.
	WaitDelay time.Duration
}

// NewExecRunner returns a runner with a five second pipe-drain bound.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: 5 * time.Second}
}

// Run executes cmd and waits for it. A non-zero exit yields *ExitError; a
// canceled context yields ctx.Err().
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Dir == "" {
		return Result{ExitCode: -1}, fmt.Errorf("command %q: working directory is required", c.String())
	}
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}

	// #nosec G204 -- tool names come from configuration, args are built internally
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid signals the whole group.
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = r.WaitDelay

	stdout, stderr := newTailWriter(captureBytes), newTailWriter(captureBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.Debug("Running command", logfields.Command(c.String()), logfields.Path(c.Dir))
	start := time.Now()
	err := cmd.Run()
	res := Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			slog.Debug("Command failed",
				logfields.Command(c.String()),
				logfields.ExitCode(res.ExitCode),
				logfields.Duration(res.Duration),
				slog.String("output", res.Tail()))
			return res, &ExitError{Command: c.String(), ExitCode: res.ExitCode, Output: res.Tail()}
		}
		return res, fmt.Errorf("run %s: %w", c.String(), err)
	}

	slog.Debug("Command finished",
		logfields.Command(c.String()),
		logfields.Duration(res.Duration))
	return res, nil
}
