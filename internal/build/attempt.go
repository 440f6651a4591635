package build

import "time"

// Attempt is the outcome of running one strategy: either Succeeded with the
// artifact path or Failed with a diagnostic.
type Attempt struct {
	Strategy     Strategy
	succeeded    bool
	ArtifactPath string
	Diagnostic   string
	Duration     time.Duration
}

// Succeeded builds a successful attempt.
func Succeeded(s Strategy, artifact string, d time.Duration) Attempt {
	return Attempt{Strategy: s, succeeded: true, ArtifactPath: artifact, Duration: d}
}

// Failed builds a failed attempt.
func Failed(s Strategy, diagnostic string, d time.Duration) Attempt {
	return Attempt{Strategy: s, Diagnostic: diagnostic, Duration: d}
}

// Succeeded reports whether the attempt produced the artifact.
func (a Attempt) Succeeded() bool { return a.succeeded }

// Result is "success" or "failed", for metrics and events.
func (a Attempt) Result() string {
	if a.succeeded {
		return "success"
	}
	return "failed"
}
