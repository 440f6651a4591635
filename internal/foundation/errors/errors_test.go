package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("builder populates fields", func(t *testing.T) {
		cause := stderrors.New("exit status 1")
		err := ScaffoldError("npm install failed").
			WithCause(cause).
			WithContext("step", "install-core").
			Build()

		assert.Equal(t, CategoryScaffold, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "npm install failed", err.Message())
		assert.True(t, err.IsFatal())
		assert.False(t, err.IsAdvisory())
		assert.ErrorIs(t, err, cause)

		step, ok := err.Context().GetString("step")
		require.True(t, ok)
		assert.Equal(t, "install-core", step)
	})

	t.Run("advisory classes are warnings", func(t *testing.T) {
		for _, err := range []*ClassifiedError{
			GradleConfigError("mirror rewrite failed").Build(),
			CleanupError("remove failed").Build(),
		} {
			assert.True(t, err.IsAdvisory(), err.Error())
			assert.False(t, err.IsFatal(), err.Error())
		}
	})

	t.Run("found through wrapping", func(t *testing.T) {
		inner := BuildError("all strategies exhausted").WithContext("reason", "all-strategies-exhausted").Build()
		wrapped := fmt.Errorf("pipeline: %w", inner)

		assert.True(t, IsClassified(wrapped))
		assert.True(t, HasCategory(wrapped, CategoryBuild))
		assert.Equal(t, CategoryBuild, GetCategory(wrapped))
		assert.Equal(t, "all-strategies-exhausted", ContextString(wrapped, "reason"))
		assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := IconProcessingError("resize failed").Build()
		derived := base.WithContext("bucket", "mipmap-hdpi")

		_, ok := base.Context().Get("bucket")
		assert.False(t, ok)
		bucket, _ := derived.Context().GetString("bucket")
		assert.Equal(t, "mipmap-hdpi", bucket)
	})
}

func TestHTTPErrorAdapter(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)

	cases := []struct {
		err  error
		want int
	}{
		{ValidationError("packageName is required").Build(), http.StatusBadRequest},
		{AlreadyExistsError("busy").Build(), http.StatusConflict},
		{IconProcessingError("bad icon").Build(), http.StatusUnprocessableEntity},
		{BuildError("exhausted").Build(), http.StatusInternalServerError},
		{CanceledError("deadline").Build(), http.StatusGatewayTimeout},
		{stderrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, a.StatusCodeFor(tc.err), tc.err.Error())
	}

	t.Run("hides tool output", func(t *testing.T) {
		err := ScaffoldError("add platform failed").
			WithContext("step", "add-platform").
			WithContext("output", "secret stack trace").
			Build()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/generate-apk", nil)

		a.WriteErrorResponse(rec, req, err)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `"step":"add-platform"`)
		assert.Contains(t, body, `"success":false`)
		assert.False(t, strings.Contains(body, "secret stack trace"))
	})

	t.Run("hides host paths", func(t *testing.T) {
		resp := a.FormatErrorResponse(PublishError("artifact vanished").
			WithContext("path", "/srv/web2apk/temp/com.demo.app/android/app-debug.apk").
			WithContext("file", "com.demo.app-1.apk").
			Build())
		assert.Equal(t, map[string]any{"file": "com.demo.app-1.apk"}, resp.Details)

		resp = a.FormatErrorResponse(fmt.Errorf("open /srv/web2apk/builds: %w", stderrors.New("denied")))
		assert.Equal(t, "internal error", resp.Message)
	})
}

func TestCLIErrorAdapter(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	assert.Equal(t, 0, a.ExitCodeFor(nil))
	assert.Equal(t, 2, a.ExitCodeFor(ValidationError("x").Build()))
	assert.Equal(t, 4, a.ExitCodeFor(ScaffoldError("x").Build()))
	assert.Equal(t, 11, a.ExitCodeFor(BuildError("x").Build()))
	assert.Equal(t, 1, a.ExitCodeFor(stderrors.New("x")))

	err := BuildError("sync failed").WithContext("output", "npx: not found").Build()
	assert.Equal(t, "Error: sync failed (use -v for details)", a.FormatError(err))

	verbose := NewCLIErrorAdapter(true, nil)
	assert.Contains(t, verbose.FormatError(err), "npx: not found")
}
