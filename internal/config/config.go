package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	AppDir    string `toml:"app_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Media contains the viewer's language and media selection preferences.
type Media struct {
	Language         string `toml:"language"`
	FallbackLanguage string `toml:"fallback_language"`
	MaxResolution    string `toml:"max_resolution"`
	Subtitles        bool   `toml:"subtitles"`
	SubtitleLanguage string `toml:"subtitle_language"`
	ExcludeTh        bool   `toml:"exclude_th"`
	// SignLanguage forces sign-language handling; when nil the mediator
	// language list decides.
	SignLanguage *bool  `toml:"sign_language"`
	DateFormat   string `toml:"date_format"`
}

// Meetings describes when meetings happen.
type Meetings struct {
	MidweekDay string `toml:"midweek_day"`
	WeekendDay string `toml:"weekend_day"`
	// VisitWeeks lists week-start dates (YYYY-MM-DD) of combined-congregation visits.
	VisitWeeks []string `toml:"visit_weeks"`
	WeeksAhead int      `toml:"weeks_ahead"`
}

// Remote contains endpoints for the media-links and mediator APIs.
type Remote struct {
	PubMediaURL    string `toml:"pub_media_url"`
	MediatorURL    string `toml:"mediator_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// Congregation configures the congregation override store.
type Congregation struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Root     string `toml:"root"`
	LocalDir string `toml:"local_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values.
//
// Configuration sections by subsystem:
//   - Paths: cache root, output folder, and log directory
//   - Media: language, fallback, resolution ceiling, subtitles
//   - Meetings: meeting weekdays and combined-visit weeks
//   - Remote: media-links and mediator API endpoints
//   - Congregation: WebDAV or local override store
//   - Logging: log format, level, and retention
type Config struct {
	Paths        Paths        `toml:"paths"`
	Media        Media        `toml:"media"`
	Meetings     Meetings     `toml:"meetings"`
	Remote       Remote       `toml:"remote"`
	Congregation Congregation `toml:"congregation"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the config at path, or the first existing candidate when path
// is empty: the per-user file, then meetingmedia.toml in the working
// directory. A missing file yields defaults. It returns the normalized
// config, the path it settled on, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				row, col := derr.Position()
				return nil, "", false, fmt.Errorf("parse config %s:%d:%d: %w", resolved, row, col, err)
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func locate(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		switch _, err := os.Stat(expanded); {
		case err == nil:
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	localPath, err := expandPath("meetingmedia.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

// EnsureDirectories creates required directories. The output directory is
// created on a best-effort basis so planning works when a removable output
// drive is absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.AppDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// PublicationsDir returns the root of the publication cache.
func (c *Config) PublicationsDir() string {
	return filepath.Join(c.Paths.AppDir, "Publications")
}

// IsVisitWeek reports whether weekStart (YYYY-MM-DD) is a combined-visit week.
func (c *Config) IsVisitWeek(weekStart string) bool {
	for _, w := range c.Meetings.VisitWeeks {
		if w == weekStart {
			return true
		}
	}
	return false
}

// expandPath resolves a leading ~ to the home directory and makes the
// result absolute. An empty value stays empty.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same ~ and absolute-path rules used for config
// values.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// ErrConfigExists is returned by WriteSample when the target exists and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// WriteSample atomically writes the annotated sample config to path,
// creating parent directories.
func WriteSample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Lstat(path); err == nil {
			return fmt.Errorf("%w at %s", ErrConfigExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check config path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
