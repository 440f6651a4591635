package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
	"git.home.luguber.info/inful/web2apk/internal/publish"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error { return nil }

func report() *pipeline.Report {
	now := time.Now()
	return &pipeline.Report{Package: "com.demo.app", AppName: "Demo", Start: now.Add(-time.Minute), End: now}
}

func TestOnBuildComplete_Success(t *testing.T) {
	conn := &fakeConn{}
	n := newNotifier(conn, "web2apk.builds")

	n.OnBuildComplete(t.Context(), &pipeline.Result{
		BuildID:  "b1",
		Artifact: &publish.Artifact{FileName: "com.demo.app-1.apk", DownloadURL: "/downloads/com.demo.app-1.apk", Size: 10, SHA256: "abc"},
		Report:   report(),
	}, nil)

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "web2apk.builds.completed", conn.msgs[0].subject)

	var msg Message
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &msg))
	assert.Equal(t, "b1", msg.BuildID)
	assert.Equal(t, "com.demo.app", msg.Package)
	assert.Equal(t, "/downloads/com.demo.app-1.apk", msg.DownloadURL)
	assert.Equal(t, int64(60000), msg.DurationMs)
}

func TestMessageFor_FailureAndWarnings(t *testing.T) {
	r := report()
	r.FailedStage = pipeline.StageBuild
	msg := MessageFor(&pipeline.Result{BuildID: "b2", Report: r}, errors.BuildError("all build strategies failed").Build())
	assert.Equal(t, "failed", msg.Status)
	assert.Equal(t, "build", msg.Stage)
	assert.Equal(t, "all build strategies failed", msg.Error)

	msg = MessageFor(&pipeline.Result{BuildID: "b3", Report: report()}, errors.CanceledError("conversion canceled").Build())
	assert.Equal(t, "canceled", msg.Status)

	adv := errors.GradleConfigError("failed to configure repositories").Warning().Build()
	warn := report()
	warn.Advisories = append(warn.Advisories, adv)
	msg = MessageFor(&pipeline.Result{
		BuildID:    "b4",
		Artifact:   &publish.Artifact{FileName: "x.apk"},
		Advisories: warn.Advisories,
		Report:     warn,
	}, nil)
	assert.Equal(t, "completed_with_warnings", msg.Status)
	assert.Equal(t, []string{"failed to configure repositories"}, msg.Warnings)
}

func TestOnBuildComplete_PublishErrorIsSwallowed(t *testing.T) {
	conn := &fakeConn{err: stderrors.New("nats: connection closed")}
	n := newNotifier(conn, "web2apk.builds")
	n.OnBuildComplete(t.Context(), &pipeline.Result{BuildID: "b1", Report: report()}, nil)
	assert.Empty(t, conn.msgs)
}

func TestNotifierIsObserver(t *testing.T) {
	var _ pipeline.Observer = (*Notifier)(nil)
}
