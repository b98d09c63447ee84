// Package config loads the process configuration from a TOML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultDataDir           = "data"
	DefaultCommandPrefix     = "!"
	DefaultModel             = "gemini-2.0-flash"
	DefaultGenerationBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultMaxMemoryEntries  = 14
	DefaultFlagProbability   = 0.05
	DefaultChimeProbability  = 0.15
	DefaultCooldownSeconds   = 10
	DefaultMinMessageRunes   = 12
	DefaultManualPath        = "manual.md"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Discord    DiscordConfig    `toml:"discord"`
	Generation GenerationConfig `toml:"generation"`
	Memory     MemoryConfig     `toml:"memory"`
	Moderation ModerationConfig `toml:"moderation"`
	Gate       GateConfig       `toml:"gate"`
	Storage    StorageConfig    `toml:"storage"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DiscordConfig struct {
	// Token is taken from DISCORD_TOKEN when unset in the file.
	Token         string `toml:"token" validate:"required"`
	OperatorID    string `toml:"operator_id"`
	CommandPrefix string `toml:"command_prefix"`
}

type GenerationConfig struct {
	// APIKey is taken from GEMINI_API_KEY when unset in the file.
	APIKey         string `toml:"api_key" validate:"required"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
	ManualPath     string `toml:"manual_path"`
}

type MemoryConfig struct {
	MaxEntries int `toml:"max_entries" validate:"gt=0"`
}

type ModerationConfig struct {
	FlagProbability float64 `toml:"flag_probability" validate:"gte=0,lte=1"`
	MinTriggerRunes int     `toml:"min_trigger_runes" validate:"gt=0"`
}

type GateConfig struct {
	ChimeProbability float64 `toml:"chime_probability" validate:"gte=0,lte=1"`
	CooldownSeconds  int     `toml:"cooldown_seconds" validate:"gte=0"`
	MinChimeRunes    int     `toml:"min_chime_runes" validate:"gt=0"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// Load reads the config file at path (DefaultConfigPath when empty),
// fills defaults, applies environment overrides, and validates the result.
// A missing file is not an error; missing credentials are.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Discord: DiscordConfig{
			CommandPrefix: DefaultCommandPrefix,
		},
		Generation: GenerationConfig{
			BaseURL:        DefaultGenerationBaseURL,
			Model:          DefaultModel,
			TimeoutSeconds: 60,
			ManualPath:     DefaultManualPath,
		},
		Memory: MemoryConfig{
			MaxEntries: DefaultMaxMemoryEntries,
		},
		Moderation: ModerationConfig{
			FlagProbability: DefaultFlagProbability,
			MinTriggerRunes: DefaultMinMessageRunes,
		},
		Gate: GateConfig{
			ChimeProbability: DefaultChimeProbability,
			CooldownSeconds:  DefaultCooldownSeconds,
			MinChimeRunes:    DefaultMinMessageRunes,
		},
		Storage: StorageConfig{
			DataDir: DefaultDataDir,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
