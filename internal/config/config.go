package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultSystemPrompt = "You are a party game contestant. Answer the prompt in one short, punchy sentence."

// Config holds every tunable of the server. Flags, the GPTDASH_*
// environment and defaults resolve in that order; API secrets are
// env-only and never appear as flags.
type Config struct {
	Bind              string
	Port              int
	HostToken         string
	BeamerToken       string
	MinAnswerLength   int
	PlayerTokenLength int

	Provider      string
	Model         string
	SystemPrompt  string
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaHost    string

	LanguageToolURL string
	Language        string

	Verbose bool
}

// RegisterFlags declares the tunables on the command and overlays values
// from the GPTDASH_* environment as defaults, so explicit flags still win.
func (c *Config) RegisterFlags(cmd *cobra.Command) {
	v := viper.New()
	v.SetEnvPrefix("GPTDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: GPTDASH_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: GPTDASH_PORT)")
	fs.StringVar(&c.HostToken, "host-token", "", "host auth token, generated when empty (env: GPTDASH_HOST_TOKEN)")
	fs.StringVar(&c.BeamerToken, "beamer-token", "", "beamer auth token, generated when empty (env: GPTDASH_BEAMER_TOKEN)")
	fs.IntVar(&c.MinAnswerLength, "min-answer-length", 2, "minimum accepted answer length in characters (env: GPTDASH_MIN_ANSWER_LENGTH)")
	fs.IntVar(&c.PlayerTokenLength, "player-token-length", 6, "length of minted player tokens (env: GPTDASH_PLAYER_TOKEN_LENGTH)")
	fs.StringVar(&c.Provider, "provider", "openai", "answer generator: openai, ollama or none (env: GPTDASH_PROVIDER)")
	fs.StringVar(&c.Model, "model", "gpt-3.5-turbo", "model the generator asks for (env: GPTDASH_MODEL)")
	fs.StringVar(&c.SystemPrompt, "system-prompt", defaultSystemPrompt, "system prompt for the generator (env: GPTDASH_SYSTEM_PROMPT)")
	fs.StringVar(&c.OllamaHost, "ollama-host", "http://localhost:11434", "ollama host URL (env: GPTDASH_OLLAMA_HOST)")
	fs.StringVar(&c.LanguageToolURL, "languagetool-url", "", "LanguageTool-compatible checker base URL, disabled when empty (env: GPTDASH_LANGUAGETOOL_URL)")
	fs.StringVar(&c.Language, "language", "en-US", "language the checker validates against (env: GPTDASH_LANGUAGE)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log at debug level (env: GPTDASH_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// Finalize pulls in the env-only secrets and validates the result.
func (c *Config) Finalize() error {
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	return c.validate()
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Provider {
	case "openai", "ollama", "none":
	default:
		return fmt.Errorf("unknown provider %q (want openai, ollama or none)", c.Provider)
	}
	if c.MinAnswerLength < 1 {
		return errors.New("min-answer-length must be at least 1")
	}
	if c.PlayerTokenLength < 4 {
		return errors.New("player-token-length must be at least 4")
	}
	return nil
}
