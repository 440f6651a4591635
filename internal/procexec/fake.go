package procexec

import (
	"context"
	"strings"
	"sync"
)

// FakeResponse scripts the outcome of a command.
type FakeResponse struct {
	Result Result
	Err    error
	// Do runs before the response is returned, e.g. to create an artifact.
	Do func(cmd Command) error
}

type fakeRule struct {
	prefix    string
	responses []FakeResponse
}

// FakeRunner is a scripted Runner for tests. Commands are matched by the
// prefix of their rendered command line; the first matching rule wins. Each
// rule replays its responses in order and repeats the last one.
type FakeRunner struct {
	mu    sync.Mutex
	rules []*fakeRule
	calls []Command
}

// NewFakeRunner returns an empty fake; unmatched commands succeed.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers responses for commands starting with prefix.
func (f *FakeRunner) On(prefix string, responses ...FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &fakeRule{prefix: prefix, responses: responses})
	return f
}

// Fail is shorthand for a non-zero exit with the given output.
func Fail(output string) FakeResponse {
	return FakeResponse{
		Result: Result{ExitCode: 1, Stderr: output},
		Err:    &ExitError{ExitCode: 1, Output: output},
	}
}

// OK is shorthand for a successful exit.
func OK() FakeResponse {
	return FakeResponse{}
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	resp, found := f.next(cmd.String())
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}
	if !found {
		return Result{}, nil
	}
	if resp.Do != nil {
		if err := resp.Do(cmd); err != nil {
			return Result{ExitCode: -1}, err
		}
	}
	if exitErr, ok := resp.Err.(*ExitError); ok && exitErr.Command == "" {
		copied := *exitErr
		copied.Command = cmd.String()
		return resp.Result, &copied
	}
	return resp.Result, resp.Err
}

func (f *FakeRunner) next(line string) (FakeResponse, bool) {
	for _, rule := range f.rules {
		if !strings.HasPrefix(line, rule.prefix) || len(rule.responses) == 0 {
			continue
		}
		resp := rule.responses[0]
		if len(rule.responses) > 1 {
			rule.responses = rule.responses[1:]
		}
		return resp, true
	}
	return FakeResponse{}, false
}

// Calls returns the commands run so far.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// CommandLines returns the rendered command lines run so far.
func (f *FakeRunner) CommandLines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}
