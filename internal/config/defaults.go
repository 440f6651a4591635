package config

const (
	defaultAddr           = ":3000"
	defaultMaxUploadBytes = 10 * 1024 * 1024
	defaultMaxFiles       = 100
)

// DefaultMirrors is the repository order written into build.gradle: the
// public repositories first, then the Aliyun mirrors.
var DefaultMirrors = []string{
	"google",
	"mavenCentral",
	"https://maven.aliyun.com/repository/google",
	"https://maven.aliyun.com/repository/central",
	"https://maven.aliyun.com/repository/gradle-plugin",
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	p := &cfg.Paths
	setIfEmpty(&p.TempDir, "temp")
	setIfEmpty(&p.BuildsDir, "builds")
	setIfEmpty(&p.AssetsDir, "assets")
	setIfEmpty(&p.UploadsDir, "uploads")
	setIfEmpty(&p.GradleDistribution, "lib/gradle-7.0-bin.zip")

	tc := &cfg.Toolchain
	setIfEmpty(&tc.NPM, "npm")
	setIfEmpty(&tc.NPX, "npx")
	setIfEmpty(&tc.Gradle, "gradle")
	setIfEmpty(&tc.Wrapper, "gradlew")

	g := &cfg.Gradle
	if len(g.Mirrors) == 0 {
		g.Mirrors = append([]string(nil), DefaultMirrors...)
	}
	setIfEmpty(&g.JVMHeap, "2048m")
	setIfEmpty(&g.Encoding, "UTF-8")

	b := &cfg.Build
	if b.MaxConcurrent <= 0 {
		b.MaxConcurrent = 2
	}
	if b.QueueSize <= 0 {
		b.QueueSize = 16
	}

	s := &cfg.Server
	setIfEmpty(&s.Addr, defaultAddr)
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = defaultMaxUploadBytes
	}
	if s.MaxFiles <= 0 {
		s.MaxFiles = defaultMaxFiles
	}
	setIfEmpty(&s.PublicDir, "public")

	setIfEmpty(&cfg.Metrics.Path, "/metrics")
	setIfEmpty(&cfg.Notify.Subject, "web2apk.builds")
	setIfEmpty(&cfg.ObjectStore.Region, "us-east-1")
	setIfEmpty(&cfg.ObjectStore.Bucket, "apks")
	setIfEmpty(&cfg.Retention.Interval, "1h")
	setIfEmpty(&cfg.Logging.Level, "info")
	setIfEmpty(&cfg.Logging.Format, "text")
}

func setIfEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
