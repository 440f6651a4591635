package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/web2apk/internal/content"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
)

const (
	DefaultVersion     = "1.0.0"
	DefaultVersionCode = 1
	DefaultEntryPage   = "index.html"
)

var packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// Request describes one conversion.
type Request struct {
	AppName     string
	PackageName string
	Version     string
	VersionCode int
	EntryPage   string

	// IconPath is an uploaded icon; empty falls back to the bundled default.
	IconPath string
	WebFiles []content.File

	// UploadedFiles are removed when the run ends, whatever its outcome.
	UploadedFiles []string
}

func (r Request) withDefaults() Request {
	r.AppName = strings.TrimSpace(r.AppName)
	r.PackageName = strings.TrimSpace(r.PackageName)
	if r.Version == "" {
		r.Version = DefaultVersion
	}
	if r.VersionCode == 0 {
		r.VersionCode = DefaultVersionCode
	}
	if r.EntryPage == "" {
		r.EntryPage = DefaultEntryPage
	}
	return r
}

// Validate checks the request after defaults are applied.
func (r Request) Validate() error {
	r = r.withDefaults()
	switch {
	case r.AppName == "":
		return validation("app name is required", "app_name", r.AppName)
	case r.PackageName == "":
		return validation("package name is required", "package_name", r.PackageName)
	case !packageNamePattern.MatchString(r.PackageName):
		return validation("package name must be reverse-domain, e.g. com.example.app", "package_name", r.PackageName)
	case r.VersionCode < 1:
		return validation("version code must be a positive integer", "version_code", r.VersionCode)
	case !filepath.IsLocal(filepath.FromSlash(r.EntryPage)):
		return validation("entry page must be a relative path inside the bundle", "entry_page", r.EntryPage)
	}
	return nil
}

func validation(msg, field string, value any) error {
	return errors.ValidationError(msg).
		WithContext("field", field).
		WithContext("value", value).
		Build()
}
