package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" mapstructure:"defaultlevel"` // default level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`          // "Local", "UTC" or an IANA name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console"`
	FileOutput   *FileOutput       `yaml:"file_output" mapstructure:"fileoutput"`
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"modulelevels"` // per-module levels
}

// ConsoleOutput represents console logging configuration.
// Console output is text without timestamps; journald or docker adds them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput represents JSON file logging configuration. A positive
// MaxSizeMB rotates the file.
type FileOutput struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"maxsizemb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"maxbackups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"maxagedays"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

const (
	DefaultLogLevel = "info"
	DefaultLogPath  = "logs/pvpoll.log"

	// LogFilePermissions restricts log files to the owner
	LogFilePermissions = 0o600
)

// applyConfigDefaults fills nil sections so older configs keep logging to console
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{Enabled: true, Level: cfg.DefaultLevel}
	}
	if cfg.Console.Level == "" {
		cfg.Console.Level = cfg.DefaultLevel
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Enabled {
		if cfg.FileOutput.Path == "" {
			cfg.FileOutput.Path = DefaultLogPath
		}
		if cfg.FileOutput.Level == "" {
			cfg.FileOutput.Level = cfg.DefaultLevel
		}
	}
}
