package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// ClassifierConfig describes the external fingerspelling classifier worker
// and the stability filtering applied to its per-frame output.
type ClassifierConfig struct {
	Command            string  `yaml:"command"`
	RequestTimeoutMS   int     `yaml:"request_timeout_ms"`
	MinConfidence      float64 `yaml:"min_confidence"`
	StabilityThreshold int     `yaml:"stability_threshold"`
	Alphabet           string  `yaml:"alphabet"`
}

type SentenceConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Mode        string  `yaml:"mode"` // mock, ollama
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type SpeechConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	OutputDir  string `yaml:"output_dir"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Sentence    SentenceConfig   `yaml:"sentence"`
	Speech      SpeechConfig     `yaml:"speech"`
}

func Default() Config {
	return Config{
		RuntimeName: "asl-gestr",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/gestr-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Classifier: ClassifierConfig{
			Command:            "python3 classifier_worker.py",
			RequestTimeoutMS:   12000,
			MinConfidence:      0.70,
			StabilityThreshold: 3,
			Alphabet:           "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		},
		Sentence: SentenceConfig{
			Enabled:     true,
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   128,
			Temperature: 0.3,
		},
		Speech: SpeechConfig{
			Enabled:    false,
			Mode:       "mock",
			Voice:      "en-US",
			SampleRate: 22050,
			Channels:   1,
			OutputDir:  "./data/audio",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "GESTR_RUNTIME_NAME")
	overrideString(&cfg.Environment, "GESTR_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "GESTR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "GESTR_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "GESTR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "GESTR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "GESTR_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "GESTR_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "GESTR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "GESTR_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "GESTR_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "GESTR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "GESTR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "GESTR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "GESTR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "GESTR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "GESTR_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "GESTR_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "GESTR_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "GESTR_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "GESTR_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "GESTR_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Classifier.Command, "GESTR_CLASSIFIER_COMMAND")
	overrideInt(&cfg.Classifier.RequestTimeoutMS, "GESTR_CLASSIFIER_REQUEST_TIMEOUT_MS")
	overrideFloat(&cfg.Classifier.MinConfidence, "GESTR_CLASSIFIER_MIN_CONFIDENCE")
	overrideInt(&cfg.Classifier.StabilityThreshold, "GESTR_CLASSIFIER_STABILITY_THRESHOLD")
	overrideString(&cfg.Classifier.Alphabet, "GESTR_CLASSIFIER_ALPHABET")
	overrideBool(&cfg.Sentence.Enabled, "GESTR_SENTENCE_ENABLED")
	overrideString(&cfg.Sentence.Mode, "GESTR_SENTENCE_MODE")
	overrideString(&cfg.Sentence.Endpoint, "GESTR_SENTENCE_ENDPOINT")
	overrideString(&cfg.Sentence.Model, "GESTR_SENTENCE_MODEL")
	overrideInt(&cfg.Sentence.MaxTokens, "GESTR_SENTENCE_MAX_TOKENS")
	overrideFloat(&cfg.Sentence.Temperature, "GESTR_SENTENCE_TEMPERATURE")
	overrideBool(&cfg.Speech.Enabled, "GESTR_SPEECH_ENABLED")
	overrideString(&cfg.Speech.Mode, "GESTR_SPEECH_MODE")
	overrideString(&cfg.Speech.Command, "GESTR_SPEECH_COMMAND")
	overrideString(&cfg.Speech.Voice, "GESTR_SPEECH_VOICE")
	overrideInt(&cfg.Speech.SampleRate, "GESTR_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.Channels, "GESTR_SPEECH_CHANNELS")
	overrideString(&cfg.Speech.OutputDir, "GESTR_SPEECH_OUTPUT_DIR")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Classifier.Command == "" {
		return errors.New("classifier.command must not be empty")
	}
	if cfg.Classifier.RequestTimeoutMS <= 0 {
		return errors.New("classifier.request_timeout_ms must be positive")
	}
	if cfg.Classifier.MinConfidence < 0 || cfg.Classifier.MinConfidence > 1 {
		return errors.New("classifier.min_confidence must be within [0,1]")
	}
	if cfg.Classifier.StabilityThreshold < 1 {
		return errors.New("classifier.stability_threshold must be >= 1")
	}
	if strings.TrimSpace(cfg.Classifier.Alphabet) == "" {
		return errors.New("classifier.alphabet must not be empty")
	}
	if cfg.Sentence.Enabled {
		switch cfg.Sentence.Mode {
		case "mock", "ollama":
		default:
			return errors.New("sentence.mode must be one of mock|ollama")
		}
		if cfg.Sentence.Mode == "ollama" && cfg.Sentence.Endpoint == "" {
			return errors.New("sentence.endpoint must be set when mode=ollama")
		}
		if cfg.Sentence.MaxTokens < 0 {
			return errors.New("sentence.max_tokens must be >= 0")
		}
	}
	if cfg.Speech.Enabled {
		switch cfg.Speech.Mode {
		case "mock", "exec":
		default:
			return errors.New("speech.mode must be one of mock|exec")
		}
		if cfg.Speech.Mode == "exec" && cfg.Speech.Command == "" {
			return errors.New("speech.command must be set when mode=exec")
		}
		if cfg.Speech.SampleRate <= 0 {
			return errors.New("speech.sample_rate must be positive")
		}
		if cfg.Speech.Channels <= 0 {
			return errors.New("speech.channels must be positive")
		}
		if cfg.Speech.OutputDir == "" {
			return errors.New("speech.output_dir must not be empty")
		}
	}
	return nil
}
