// Package config provides the configuration schema, loader, and provider
// registry for the Towncrier bot.
package config

// LogLevel controls log verbosity for the Towncrier process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Towncrier.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Users     []UserConfig    `yaml:"users"`
	Guilds    []GuildConfig   `yaml:"servers"`
	Providers ProvidersConfig `yaml:"providers"`
	History   HistoryConfig   `yaml:"history"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings for the Towncrier process.
type ServerConfig struct {
	// ListenAddr is the TCP address for the metrics/health listener
	// (e.g., ":9090"). When empty, no listener is started.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the bot's Discord credentials.
type DiscordConfig struct {
	// Token is the bot token used to authenticate the gateway session.
	Token string `yaml:"token"`
}

// UserConfig describes one monitored user whose messages are spoken aloud.
type UserConfig struct {
	// ID is the user's Discord snowflake ID.
	ID string `yaml:"id"`

	// Voice selects the synthesis voice for this user's messages. Checked
	// against the configured TTS provider's voice list at startup.
	Voice string `yaml:"voice"`

	// Flavor is an optional standing style instruction applied to every
	// message from this user (e.g., "sound perpetually bored").
	Flavor string `yaml:"flavor"`
}

// GuildConfig scopes the bot's behaviour within one Discord server.
type GuildConfig struct {
	// GuildID is the server's snowflake ID.
	GuildID string `yaml:"guild_id"`

	// ListenChannels lists text channel IDs whose messages are eligible
	// for speech. Empty means every channel in the guild.
	ListenChannels []string `yaml:"listen_channels"`
}

// ProvidersConfig declares which provider implementation to use for each
// synthesis concern. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// TTS selects the text-to-speech provider. Required.
	TTS ProviderEntry `yaml:"tts"`

	// TTSFallbacks lists additional text-to-speech providers tried in order
	// when the primary fails. Optional.
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`

	// LLM selects the language model used for attachment descriptions and
	// flavor rewriting. Optional; when unset those features are disabled.
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-mini-tts").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// HistoryConfig enables the optional played-clip history log.
type HistoryConfig struct {
	// PostgresDSN is the connection string for the history database.
	// Empty disables history logging entirely.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// PipelineConfig tunes the transcode pipeline.
type PipelineConfig struct {
	// FFmpegPath overrides the decoder binary location. Empty means
	// "ffmpeg" resolved via PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// User returns the monitored-user entry for id, or nil when id is not
// monitored.
func (c *Config) User(id string) *UserConfig {
	for i := range c.Users {
		if c.Users[i].ID == id {
			return &c.Users[i]
		}
	}
	return nil
}

// Guild returns the per-guild entry for guildID, or nil when the guild is
// not configured.
func (c *Config) Guild(guildID string) *GuildConfig {
	for i := range c.Guilds {
		if c.Guilds[i].GuildID == guildID {
			return &c.Guilds[i]
		}
	}
	return nil
}
