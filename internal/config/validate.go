package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateMeetings(); err != nil {
		return err
	}
	if err := c.validateCongregation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMedia() error {
	if _, err := ParseResolution(c.Media.MaxResolution); err != nil {
		return fmt.Errorf("media.max_resolution: %w", err)
	}
	probe := time.Date(2024, 11, 25, 0, 0, 0, 0, time.UTC)
	formatted := probe.Format(c.Media.DateFormat)
	parsed, err := time.Parse(c.Media.DateFormat, formatted)
	if err != nil || !parsed.Equal(probe) {
		return fmt.Errorf("media.date_format %q must round-trip a calendar date", c.Media.DateFormat)
	}
	if strings.ContainsAny(formatted, `/\:`) {
		return fmt.Errorf("media.date_format %q produces characters unsafe for folder names", c.Media.DateFormat)
	}
	return nil
}

func (c *Config) validateMeetings() error {
	if _, err := ParseWeekday(c.Meetings.MidweekDay); err != nil {
		return fmt.Errorf("meetings.midweek_day: %w", err)
	}
	if _, err := ParseWeekday(c.Meetings.WeekendDay); err != nil {
		return fmt.Errorf("meetings.weekend_day: %w", err)
	}
	for _, w := range c.Meetings.VisitWeeks {
		if _, err := time.Parse("2006-01-02", w); err != nil {
			return fmt.Errorf("meetings.visit_weeks: %q is not YYYY-MM-DD", w)
		}
	}
	return nil
}

func (c *Config) validateCongregation() error {
	if !c.Congregation.Enabled {
		return nil
	}
	if c.Congregation.URL == "" && c.Congregation.LocalDir == "" {
		return errors.New("congregation.url or congregation.local_dir must be set when congregation.enabled is true")
	}
	return nil
}

// ParseResolution reads the leading integer of a label such as "720p".
func ParseResolution(label string) (int, error) {
	label = strings.TrimSpace(strings.ToLower(label))
	end := 0
	for end < len(label) && label[end] >= '0' && label[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("resolution %q has no leading number", label)
	}
	value, err := strconv.Atoi(label[:end])
	if err != nil {
		return 0, err
	}
	return value, nil
}

// ParseWeekday parses an English weekday name.
func ParseWeekday(name string) (time.Weekday, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.ToLower(day.String()) == name {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
