package testsupport

import (
	"path/filepath"
	"testing"

	"meetingmedia/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.AppDir = filepath.Join(base, "app")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Remote.PubMediaURL = "http://127.0.0.1:0/GETPUBMEDIALINKS"
	cfgVal.Remote.MediatorURL = "http://127.0.0.1:0/v1"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLanguages sets the preferred and fallback language symbols.
func WithLanguages(preferred, fallback string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.Language = preferred
		b.cfg.Media.FallbackLanguage = fallback
		b.cfg.Media.SubtitleLanguage = preferred
	}
}

// WithRemote points both remote APIs at a test server.
func WithRemote(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.PubMediaURL = baseURL + "/GETPUBMEDIALINKS"
		b.cfg.Remote.MediatorURL = baseURL + "/v1"
	}
}

// WithCongregationDir enables the local-directory override store.
func WithCongregationDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Congregation.Enabled = true
		b.cfg.Congregation.LocalDir = filepath.Join(b.baseDir, "congregation")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.AppDir)
}
