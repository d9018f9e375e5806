package config

const (
	defaultConfigPath       = "~/.config/meetingmedia/config.toml"
	defaultAppDir           = "~/.local/share/meetingmedia"
	defaultOutputDir        = "~/Meeting Media"
	defaultLogDir           = "~/.local/share/meetingmedia/logs"
	defaultLogRetentionDays = 30
	defaultLanguage         = "E"
	defaultMaxResolution    = "720p"
	defaultDateFormat       = "2006-01-02"
	defaultMidweekDay       = "tuesday"
	defaultWeekendDay       = "sunday"
	defaultWeeksAhead       = 2
	defaultPubMediaURL      = "https://b.jw-cdn.org/apis/pub-media/GETPUBMEDIALINKS"
	defaultMediatorURL      = "https://b.jw-cdn.org/apis/mediator/v1"
	defaultTimeoutSeconds   = 30
	defaultUserAgent        = "meetingmedia/dev"
	defaultCongregationRoot = "/"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			AppDir:    defaultAppDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Media: Media{
			Language:      defaultLanguage,
			MaxResolution: defaultMaxResolution,
			ExcludeTh:     true,
			DateFormat:    defaultDateFormat,
		},
		Meetings: Meetings{
			MidweekDay: defaultMidweekDay,
			WeekendDay: defaultWeekendDay,
			WeeksAhead: defaultWeeksAhead,
		},
		Remote: Remote{
			PubMediaURL:    defaultPubMediaURL,
			MediatorURL:    defaultMediatorURL,
			TimeoutSeconds: defaultTimeoutSeconds,
			UserAgent:      defaultUserAgent,
		},
		Congregation: Congregation{
			Root: defaultCongregationRoot,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
