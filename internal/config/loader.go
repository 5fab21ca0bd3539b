package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/antzucaro/matchr"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts": {"openai", "elevenlabs"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// voiceSuggestionMaxDistance is the largest edit distance at which a
// misspelled voice name still earns a "did you mean" hint.
const voiceSuggestionMaxDistance = 3

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
//
// Voice names cannot be checked here because the valid set depends on the
// configured TTS provider; call [CheckVoices] once the provider exists.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		validateProviderName("tts", fb.Name)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; attachment descriptions and flavor rewriting are disabled")
	}

	// Monitored users
	if len(cfg.Users) == 0 {
		errs = append(errs, errors.New("at least one entry in users is required"))
	}
	userIDsSeen := make(map[string]int, len(cfg.Users))
	for i, u := range cfg.Users {
		prefix := fmt.Sprintf("users[%d]", i)
		if u.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := userIDsSeen[u.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of users[%d]", prefix, u.ID, prev))
			}
			userIDsSeen[u.ID] = i
		}
		if u.Voice == "" {
			errs = append(errs, fmt.Errorf("%s.voice is required", prefix))
		}
	}

	// Guilds
	if len(cfg.Guilds) == 0 {
		errs = append(errs, errors.New("at least one entry in servers is required"))
	}
	guildIDsSeen := make(map[string]int, len(cfg.Guilds))
	for i, g := range cfg.Guilds {
		prefix := fmt.Sprintf("servers[%d]", i)
		if g.GuildID == "" {
			errs = append(errs, fmt.Errorf("%s.guild_id is required", prefix))
		} else {
			if prev, ok := guildIDsSeen[g.GuildID]; ok {
				errs = append(errs, fmt.Errorf("%s.guild_id %q is a duplicate of servers[%d]", prefix, g.GuildID, prev))
			}
			guildIDsSeen[g.GuildID] = i
		}
		if len(g.ListenChannels) == 0 {
			slog.Warn("no listen_channels configured; listening on every channel", "guild_id", g.GuildID)
		}
	}

	return errors.Join(errs...)
}

// CheckVoices verifies every configured user voice against the TTS
// provider's available voice list. Unknown voices produce an error carrying
// a nearest-match suggestion when one is close enough.
func CheckVoices(cfg *Config, available []string) error {
	known := make(map[string]struct{}, len(available))
	for _, v := range available {
		known[v] = struct{}{}
	}

	var errs []error
	for i, u := range cfg.Users {
		if u.Voice == "" {
			continue
		}
		if _, ok := known[u.Voice]; ok {
			continue
		}
		if hint := nearestVoice(u.Voice, available); hint != "" {
			errs = append(errs, fmt.Errorf("users[%d].voice %q is not offered by the TTS provider (did you mean %q?)", i, u.Voice, hint))
		} else {
			errs = append(errs, fmt.Errorf("users[%d].voice %q is not offered by the TTS provider", i, u.Voice))
		}
	}
	return errors.Join(errs...)
}

// nearestVoice returns the closest available voice name by edit distance,
// or "" when nothing is within the suggestion threshold.
func nearestVoice(voice string, available []string) string {
	best, bestDist := "", voiceSuggestionMaxDistance+1
	for _, v := range available {
		if d := matchr.Levenshtein(voice, v); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	valid := ValidProviderNames[kind]
	for _, v := range valid {
		if name == v {
			return
		}
	}
	slog.Warn("unrecognised provider name", "kind", kind, "name", name, "known", valid)
}
