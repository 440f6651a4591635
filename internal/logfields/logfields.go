// Package logfields defines canonical slog attribute keys so every package logs
// the same field names for the same concepts.
package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyJobStatus  = "job_status"
	KeyPackage    = "package"
	KeyAppName    = "app_name"
	KeyStage      = "stage"
	KeyStep       = "step"
	KeyStrategy   = "strategy"
	KeyBucket     = "bucket"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyWorker     = "worker"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func Package(p string) slog.Attr       { return slog.String(KeyPackage, p) }
func AppName(n string) slog.Attr       { return slog.String(KeyAppName, n) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Step(name string) slog.Attr       { return slog.String(KeyStep, name) }
func Strategy(name string) slog.Attr   { return slog.String(KeyStrategy, name) }
func Bucket(name string) slog.Attr     { return slog.String(KeyBucket, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func ExitCode(code int) slog.Attr      { return slog.Int(KeyExitCode, code) }
func Worker(id string) slog.Attr       { return slog.String(KeyWorker, id) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }

// Duration records d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
