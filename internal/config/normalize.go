package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeMeetings()
	c.normalizeRemote()
	if err := c.normalizeCongregation(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.AppDir) == "" {
		c.Paths.AppDir = defaultAppDir
	}
	if c.Paths.AppDir, err = expandPath(c.Paths.AppDir); err != nil {
		return fmt.Errorf("paths.app_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.Language = strings.ToUpper(strings.TrimSpace(c.Media.Language))
	if c.Media.Language == "" {
		c.Media.Language = defaultLanguage
	}
	c.Media.FallbackLanguage = strings.ToUpper(strings.TrimSpace(c.Media.FallbackLanguage))
	if c.Media.FallbackLanguage == c.Media.Language {
		c.Media.FallbackLanguage = ""
	}
	c.Media.MaxResolution = strings.ToLower(strings.TrimSpace(c.Media.MaxResolution))
	if c.Media.MaxResolution == "" {
		c.Media.MaxResolution = defaultMaxResolution
	}
	c.Media.SubtitleLanguage = strings.ToUpper(strings.TrimSpace(c.Media.SubtitleLanguage))
	if c.Media.SubtitleLanguage == "" {
		c.Media.SubtitleLanguage = c.Media.Language
	}
	c.Media.DateFormat = strings.TrimSpace(c.Media.DateFormat)
	if c.Media.DateFormat == "" {
		c.Media.DateFormat = defaultDateFormat
	}
}

func (c *Config) normalizeMeetings() {
	c.Meetings.MidweekDay = strings.ToLower(strings.TrimSpace(c.Meetings.MidweekDay))
	if c.Meetings.MidweekDay == "" {
		c.Meetings.MidweekDay = defaultMidweekDay
	}
	c.Meetings.WeekendDay = strings.ToLower(strings.TrimSpace(c.Meetings.WeekendDay))
	if c.Meetings.WeekendDay == "" {
		c.Meetings.WeekendDay = defaultWeekendDay
	}
	if c.Meetings.WeeksAhead <= 0 {
		c.Meetings.WeeksAhead = defaultWeeksAhead
	}
	weeks := make([]string, 0, len(c.Meetings.VisitWeeks))
	for _, w := range c.Meetings.VisitWeeks {
		if trimmed := strings.TrimSpace(w); trimmed != "" {
			weeks = append(weeks, trimmed)
		}
	}
	c.Meetings.VisitWeeks = weeks
}

func (c *Config) normalizeRemote() {
	c.Remote.PubMediaURL = strings.TrimSpace(c.Remote.PubMediaURL)
	if c.Remote.PubMediaURL == "" {
		c.Remote.PubMediaURL = defaultPubMediaURL
	}
	c.Remote.MediatorURL = strings.TrimRight(strings.TrimSpace(c.Remote.MediatorURL), "/")
	if c.Remote.MediatorURL == "" {
		c.Remote.MediatorURL = defaultMediatorURL
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultTimeoutSeconds
	}
	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeCongregation() error {
	c.Congregation.URL = strings.TrimSpace(c.Congregation.URL)
	c.Congregation.Username = strings.TrimSpace(c.Congregation.Username)
	if c.Congregation.Password == "" {
		if value, ok := os.LookupEnv("MEETINGMEDIA_WEBDAV_PASSWORD"); ok {
			c.Congregation.Password = value
		}
	}
	c.Congregation.Root = strings.TrimSpace(c.Congregation.Root)
	if c.Congregation.Root == "" {
		c.Congregation.Root = defaultCongregationRoot
	}
	if strings.TrimSpace(c.Congregation.LocalDir) != "" {
		expanded, err := expandPath(c.Congregation.LocalDir)
		if err != nil {
			return fmt.Errorf("congregation.local_dir: %w", err)
		}
		c.Congregation.LocalDir = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
