package scaffold

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/google/renameio/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PackageManifest is the package.json written into the workspace.
type PackageManifest struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Main        string            `json:"main"`
	Scripts     map[string]string `json:"scripts"`
	Keywords    []string          `json:"keywords"`
	Author      string            `json:"author"`
	License     string            `json:"license"`
}

// NewPackageManifest builds the manifest for appName at version.
func NewPackageManifest(appName, version string) PackageManifest {
	return PackageManifest{
		Name:        Slug(appName),
		Version:     version,
		Description: "Web to APK converted app",
		Main:        "index.js",
		Scripts:     map[string]string{"build": `echo "Build script"`},
		Keywords:    []string{},
		Author:      "",
		License:     "ISC",
	}
}

// CapacitorConfig is capacitor.config.json.
type CapacitorConfig struct {
	AppID             string `json:"appId"`
	AppName           string `json:"appName"`
	WebDir            string `json:"webDir"`
	BundledWebRuntime bool   `json:"bundledWebRuntime"`
}

// WebDir is the web root directory name relative to the workspace.
const WebDir = "dist"

// NewCapacitorConfig binds the package id and display name to the web root.
func NewCapacitorConfig(packageName, appName string) CapacitorConfig {
	return CapacitorConfig{
		AppID:   packageName,
		AppName: appName,
		WebDir:  WebDir,
	}
}

// Slug turns a display name into an npm package name: diacritics folded,
// lower case, whitespace runs collapsed to a hyphen.
func Slug(appName string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), appName)
	if err != nil {
		folded = appName
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		switch {
		case unicode.IsSpace(r):
			pendingDash = true
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '_'):
		default:
			// npm rejects non URL-safe names
			r = '-'
		}
		if pendingDash && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingDash = false
		b.WriteRune(r)
	}

	slug := strings.Trim(b.String(), "-._")
	if slug == "" {
		return "app"
	}
	return slug
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, append(data, '\n'), 0o644)
}
