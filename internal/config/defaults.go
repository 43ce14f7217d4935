package config

const (
	defaultConfigPath               = "~/.config/scriptorium/config.toml"
	defaultDataDir                  = "~/.local/share/scriptorium"
	defaultLogDir                   = "~/.local/share/scriptorium/logs"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
	defaultTickInterval             = "10s"
	defaultWorkers                  = 4
	defaultBatchSize                = 32
	defaultHeartbeatInterval        = "15s"
	defaultHeartbeatTimeout         = "2m"
	defaultNATSSubject              = "scriptorium.events"
	defaultNotificationRequestLimit = "10s"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Scheduler: Scheduler{
			TickInterval:      defaultTickInterval,
			Workers:           defaultWorkers,
			BatchSize:         defaultBatchSize,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			NATSSubject:    defaultNATSSubject,
			RequestTimeout: defaultNotificationRequestLimit,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
