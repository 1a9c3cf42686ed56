package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config carries every runtime knob of the engine. Values come from the
// environment; defaults mirror the behavior of an unconfigured client.
type Config struct {
	ListenAddr string `env:"GENCHAT_LISTEN_ADDR" envDefault:":8090"`
	DBPath     string `env:"GENCHAT_DB_PATH" envDefault:"genchat.db"`

	// Model backend. An empty base URL means "not configured yet": sends are
	// ignored until the UI configures one.
	OllamaBaseURL  string        `env:"OLLAMA_BASE_URL"`
	OllamaModel    string        `env:"OLLAMA_MODEL" envDefault:"llama3"`
	RequestTimeout time.Duration `env:"GENCHAT_REQUEST_TIMEOUT" envDefault:"90s"`

	// Reveal scheduler policy. Cadence and chunk size are fixed constants of
	// the typing simulation, not content-dependent.
	RevealInterval  time.Duration `env:"GENCHAT_REVEAL_INTERVAL" envDefault:"10ms"`
	RevealChunkSize int           `env:"GENCHAT_REVEAL_CHUNK" envDefault:"6"`

	// Audio narration timeline policy.
	AudioTickInterval   time.Duration `env:"GENCHAT_AUDIO_TICK" envDefault:"1s"`
	AudioCharsPerSecond int           `env:"GENCHAT_AUDIO_CPS" envDefault:"14"`
	AudioMinSeconds     int           `env:"GENCHAT_AUDIO_MIN_SECONDS" envDefault:"2"`
	AudioEndTolerance   int           `env:"GENCHAT_AUDIO_END_TOLERANCE" envDefault:"2"`

	// Session titles derived from the first message are cut at this length.
	TitleMaxLen int `env:"GENCHAT_TITLE_MAX_LEN" envDefault:"30"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if cfg.RevealChunkSize <= 0 {
		cfg.RevealChunkSize = 6
	}
	if cfg.AudioCharsPerSecond <= 0 {
		cfg.AudioCharsPerSecond = 14
	}
	return cfg, nil
}
