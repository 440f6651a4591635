package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"JobStatus", KeyJobStatus, "queued", JobStatus("queued")},
		{"Package", KeyPackage, "com.demo.app", Package("com.demo.app")},
		{"AppName", KeyAppName, "Demo", AppName("Demo")},
		{"Stage", KeyStage, "build", Stage("build")},
		{"Step", KeyStep, "add-platform", Step("add-platform")},
		{"Strategy", KeyStrategy, "wrapper-online", Strategy("wrapper-online")},
		{"Bucket", KeyBucket, "mipmap-mdpi", Bucket("mipmap-mdpi")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Command", KeyCommand, "npx cap copy", Command("npx cap copy")},
		{"Worker", KeyWorker, "worker-0", Worker("worker-0")},
		{"Method", KeyMethod, "POST", Method("POST")},
		{"UserAgent", KeyUserAgent, "ua", UserAgent("ua")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s key mismatch: got %s want %s", c.name, c.attr.Key, c.attrKey)
		}
		if c.attr.Value.String() != c.attrVal {
			t.Fatalf("%s value mismatch: got %s want %s", c.name, c.attr.Value.String(), c.attrVal)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := ExitCode(2); a.Key != KeyExitCode || a.Value.Int64() != 2 {
		t.Fatalf("unexpected exit code attr: %v", a)
	}
	if a := Status(409); a.Key != KeyStatus || a.Value.Int64() != 409 {
		t.Fatalf("unexpected status attr: %v", a)
	}
	if a := Duration(1500 * time.Microsecond); a.Key != KeyDurationMS || a.Value.Float64() != 1.5 {
		t.Fatalf("unexpected duration attr: %v", a)
	}
}

func TestErrorHelper(t *testing.T) {
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("expected empty error value, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Fatalf("expected boom, got %q", a.Value.String())
	}
}
