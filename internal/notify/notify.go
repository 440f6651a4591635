// Package notify publishes conversion outcomes to NATS so other services can
// react to finished builds.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/web2apk/internal/build"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
)

// Message is the JSON body published for every finished conversion.
type Message struct {
	BuildID     string    `json:"build_id"`
	Package     string    `json:"package"`
	AppName     string    `json:"app_name"`
	Status      string    `json:"status"` // completed, completed_with_warnings, failed, canceled
	DownloadURL string    `json:"download_url,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	Size        int64     `json:"size,omitempty"`
	SHA256      string    `json:"sha256,omitempty"`
	Recovered   bool      `json:"recovered,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// publisher is the subset of *nats.Conn the notifier needs.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Notifier publishes to <subject>.<status>.
type Notifier struct {
	conn    publisher
	subject string
	close   func()
}

// Connect dials url and returns a notifier publishing under subject.
func Connect(url, subject string) (*Notifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("web2apk"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}))
	if err != nil {
		return nil, errors.NewError(errors.CategoryNetwork, "failed to connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS notifier connected", slog.String("url", url), slog.String("subject", subject))
	return &Notifier{conn: conn, subject: subject, close: conn.Close}, nil
}

func newNotifier(p publisher, subject string) *Notifier {
	return &Notifier{conn: p, subject: subject}
}

// Close drops the connection.
func (n *Notifier) Close() {
	if n != nil && n.close != nil {
		n.close()
	}
}

// Publish sends msg. The caller's context only bounds the flush.
func (n *Notifier) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	subject := n.subject + "." + msg.Status
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return n.conn.FlushWithContext(ctx)
}

// OnBuildComplete implements pipeline.Observer. Failures are logged only.
func (n *Notifier) OnBuildComplete(ctx context.Context, res *pipeline.Result, err error) {
	if res == nil {
		return
	}
	msg := MessageFor(res, err)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if perr := n.Publish(pubCtx, msg); perr != nil {
		slog.Warn("Failed to publish build notification",
			logfields.BuildID(res.BuildID),
			logfields.Error(perr))
	}
}

func (n *Notifier) OnBuildStart(context.Context, string, pipeline.Request) {}

func (n *Notifier) OnStageComplete(context.Context, string, pipeline.StageName, time.Duration, pipeline.StageResult) {
}

func (n *Notifier) OnStrategyAttempt(context.Context, string, build.Attempt) {}

// MessageFor summarizes a finished run.
func MessageFor(res *pipeline.Result, err error) Message {
	msg := Message{BuildID: res.BuildID, Timestamp: time.Now()}
	if r := res.Report; r != nil {
		msg.Package = r.Package
		msg.AppName = r.AppName
		msg.Recovered = r.Recovered
		msg.DurationMs = r.Duration().Milliseconds()
		msg.Warnings = r.Warnings()
	}
	switch {
	case err != nil:
		msg.Status = "failed"
		if errors.HasCategory(err, errors.CategoryCanceled) {
			msg.Status = "canceled"
		}
		msg.Error = err.Error()
		if ce, ok := errors.AsClassified(err); ok {
			msg.Error = ce.Message()
		}
		if res.Report != nil {
			msg.Stage = string(res.Report.FailedStage)
		}
	case res.HasWarnings():
		msg.Status = "completed_with_warnings"
	default:
		msg.Status = "completed"
	}
	if a := res.Artifact; a != nil {
		msg.DownloadURL = a.DownloadURL
		msg.FileName = a.FileName
		msg.Size = a.Size
		msg.SHA256 = a.SHA256
	}
	return msg
}
