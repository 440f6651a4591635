package gradle

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/magiconair/properties"
)

// Properties are the gradle.properties settings the build relies on.
type Properties struct {
	UseAndroidX    bool
	EnableJetifier bool
	JVMHeap        string // e.g. 2048m
	Encoding       string
	Offline        bool
}

// NewProperties returns the settings for env.
func NewProperties(heap, encoding string, env Environment) Properties {
	return Properties{
		UseAndroidX:    true,
		EnableJetifier: true,
		JVMHeap:        heap,
		Encoding:       encoding,
		Offline:        env.Offline,
	}
}

// JVMArgs renders org.gradle.jvmargs.
func (p Properties) JVMArgs() string {
	return fmt.Sprintf("-Xmx%s -Dfile.encoding=%s", p.JVMHeap, p.Encoding)
}

// Apply merges the settings into an existing properties set. Keys the
// generator already wrote are kept unless overridden here.
func (p Properties) Apply(into *properties.Properties) error {
	pairs := [][2]string{
		{"android.useAndroidX", fmt.Sprint(p.UseAndroidX)},
		{"android.enableJetifier", fmt.Sprint(p.EnableJetifier)},
		{"org.gradle.jvmargs", p.JVMArgs()},
	}
	if p.Offline {
		pairs = append(pairs, [2]string{"org.gradle.offline", "true"})
	} else {
		into.Delete("org.gradle.offline")
	}
	for _, kv := range pairs {
		if _, _, err := into.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}
	return nil
}

// WrapperProperties is gradle/wrapper/gradle-wrapper.properties pointing at
// a local distribution.
type WrapperProperties struct {
	DistributionBase string
	DistributionPath string
	DistributionURL  string
	ZipStoreBase     string
	ZipStorePath     string
}

// NewWrapperProperties points the wrapper at the archive at path.
func NewWrapperProperties(path string) WrapperProperties {
	return WrapperProperties{
		DistributionBase: "GRADLE_USER_HOME",
		DistributionPath: "wrapper/dists",
		DistributionURL:  FileURI(path),
		ZipStoreBase:     "GRADLE_USER_HOME",
		ZipStorePath:     "wrapper/dists",
	}
}

// FileURI renders an absolute path as a file:// URI with forward slashes.
func FileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	if u.Path != "" && u.Path[0] != '/' {
		// Drive-letter paths still need the empty authority.
		u.Path = "/" + u.Path
	}
	return u.String()
}

func (w WrapperProperties) toProperties() (*properties.Properties, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true
	for _, kv := range [][2]string{
		{"distributionBase", w.DistributionBase},
		{"distributionPath", w.DistributionPath},
		{"distributionUrl", w.DistributionURL},
		{"zipStoreBase", w.ZipStoreBase},
		{"zipStorePath", w.ZipStorePath},
	} {
		if _, _, err := p.Set(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// loadProperties reads path, returning an empty set when it does not exist.
func loadProperties(path string) (*properties.Properties, error) {
	if _, err := os.Stat(path); stderrors.Is(err, os.ErrNotExist) {
		p := properties.NewProperties()
		p.DisableExpansion = true
		return p, nil
	}
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, err
	}
	p.DisableExpansion = true
	return p, nil
}

// writeProperties serializes p atomically.
func writeProperties(path string, p *properties.Properties) error {
	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return err
	}
	return renameio.WriteFile(path, buf.Bytes(), 0o644)
}
