package handlers

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/web2apk/internal/content"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
)

// Multipart field names accepted by the generate endpoint.
const (
	FieldAppName     = "appName"
	FieldPackageName = "packageName"
	FieldAppVersion  = "appVersion"
	FieldVersionCode = "versionCode"
	FieldMainPage    = "mainPage"
	FieldAppIcon     = "appIcon"
	FieldWebFiles    = "webDirectory"
)

const maxFieldBytes = 4 << 10

// UploadLimits bound a single request.
type UploadLimits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// parseUpload streams the multipart body to dir and builds a request. On
// error every file already written is removed.
func parseUpload(r *http.Request, dir string, limits UploadLimits) (req pipeline.Request, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return req, errors.ValidationError("expected a multipart/form-data body").WithCause(err).Build()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return req, errors.FileSystemError("failed to create upload directory").WithCause(err).Build()
	}
	defer func() {
		if err != nil {
			for _, f := range req.UploadedFiles {
				_ = os.Remove(f)
			}
			req.UploadedFiles = nil
		}
	}()

	var icons int
	for {
		part, perr := mr.NextPart()
		if stderrors.Is(perr, io.EOF) {
			break
		}
		if perr != nil {
			return req, errors.ValidationError("malformed multipart body").WithCause(perr).Build()
		}

		name := part.FormName()
		filename := originalFilename(part)
		if filename == "" {
			if ferr := readField(part, name, &req); ferr != nil {
				return req, ferr
			}
			continue
		}

		switch name {
		case FieldAppIcon:
			icons++
			if icons > 1 {
				return req, tooMany(FieldAppIcon, 1)
			}
		case FieldWebFiles:
			if len(req.WebFiles) >= limits.MaxFiles {
				return req, tooMany(FieldWebFiles, limits.MaxFiles)
			}
		default:
			return req, errors.ValidationError("unexpected file field").WithContext("field", name).Build()
		}

		saved, serr := saveUpload(part, dir, filename, limits.MaxFileBytes)
		if saved != "" {
			req.UploadedFiles = append(req.UploadedFiles, saved)
		}
		if serr != nil {
			return req, serr
		}
		if name == FieldAppIcon {
			req.IconPath = saved
		} else {
			req.WebFiles = append(req.WebFiles, content.File{RelPath: webRelPath(filename), SourcePath: saved})
		}
	}
	return req, nil
}

func readField(part *multipart.Part, name string, req *pipeline.Request) error {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return errors.ValidationError("failed to read form field").WithCause(err).WithContext("field", name).Build()
	}
	if len(b) > maxFieldBytes {
		return errors.ValidationError("form field too large").WithContext("field", name).Build()
	}
	v := strings.TrimSpace(string(b))
	switch name {
	case FieldAppName:
		req.AppName = v
	case FieldPackageName:
		req.PackageName = v
	case FieldAppVersion:
		req.Version = v
	case FieldMainPage:
		req.EntryPage = v
	case FieldVersionCode:
		if v == "" {
			return nil
		}
		code, err := strconv.Atoi(v)
		if err != nil || code < 1 {
			return errors.ValidationError("version code must be a positive integer").
				WithContext("field", "version_code").
				WithContext("value", v).
				Build()
		}
		req.VersionCode = code
	}
	return nil
}

// originalFilename returns the client-supplied filename with any directory
// components intact. multipart.Part.FileName strips them, which would lose
// the layout of a directory upload.
func originalFilename(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return part.FileName()
	}
	return params["filename"]
}

// webRelPath normalizes a browser-supplied relative path. Safety checks
// happen when the file is staged.
func webRelPath(name string) string {
	return path.Clean(strings.ReplaceAll(name, "\\", "/"))
}

func saveUpload(part *multipart.Part, dir, filename string, limit int64) (string, error) {
	ext := filepath.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	f, err := os.CreateTemp(dir, "upload-*"+sanitizeExt(ext))
	if err != nil {
		return "", errors.FileSystemError("failed to store upload").WithCause(err).Build()
	}
	n, err := io.Copy(f, io.LimitReader(part, limit+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return f.Name(), errors.ValidationError("failed to read uploaded file").
			WithCause(err).
			WithContext("file", filename).
			Build()
	}
	if n > limit {
		return f.Name(), errors.ValidationError(fmt.Sprintf("uploaded file exceeds %d bytes", limit)).
			WithContext("file", filename).
			Build()
	}
	return f.Name(), nil
}

func sanitizeExt(ext string) string {
	if len(ext) > 16 || strings.ContainsAny(ext, "*/\\") {
		return ""
	}
	return ext
}

func tooMany(field string, limit int) error {
	return errors.ValidationError(fmt.Sprintf("too many files in %s (max %d)", field, limit)).
		WithContext("field", field).
		Build()
}
