package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks the configuration for values the pipeline cannot work with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	durations := []struct{ name, raw string }{
		{"build.timeout", c.Build.Timeout},
		{"retention.interval", c.Retention.Interval},
		{"retention.max_age", c.Retention.MaxAge},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		if v, err := time.ParseDuration(d.raw); err != nil || v < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", d.name, d.raw))
		}
	}

	for i, m := range c.Gradle.Mirrors {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("gradle.mirrors[%d]: empty entry", i))
		}
	}
	if !strings.HasSuffix(c.Gradle.JVMHeap, "m") && !strings.HasSuffix(c.Gradle.JVMHeap, "g") {
		errs = append(errs, fmt.Errorf("gradle.jvm_heap: expected a size like 2048m or 2g, got %q", c.Gradle.JVMHeap))
	}

	if c.ObjectStore.Endpoint != "" {
		if strings.Contains(c.ObjectStore.Endpoint, "://") {
			errs = append(errs, fmt.Errorf("objectstore.endpoint must not include scheme: %q", c.ObjectStore.Endpoint))
		}
		if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
			errs = append(errs, errors.New("objectstore: access_key and secret_key are required when endpoint is set"))
		}
	}

	if _, err := logLevels.Parse(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logFormats.Parse(c.Logging.Format); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
