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
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	ChunkSize       int     `yaml:"chunk_size"`
	WindowDuration  float64 `yaml:"window_duration_s"`
	OverlapRatio    float64 `yaml:"overlap_ratio"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
	MaxSilence      float64 `yaml:"max_silence_s"`
	Source          string  `yaml:"source"` // tone, exec
	CaptureCommand  string  `yaml:"capture_command"`
	FrameQueueSize  int     `yaml:"frame_queue_size"`
}

// WindowSize returns the analysis window length in samples.
func (a AudioConfig) WindowSize() int {
	return int(float64(a.SampleRate) * a.WindowDuration)
}

// OverlapSize returns the number of trailing samples carried into the next window.
func (a AudioConfig) OverlapSize() int {
	return int(float64(a.WindowSize()) * a.OverlapRatio)
}

type EngineConfig struct {
	Mode                string  `yaml:"mode"` // mock, exec
	Command             string  `yaml:"command"`
	Model               string  `yaml:"model"`
	Language            string  `yaml:"language"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	Preprocess          bool    `yaml:"enable_preprocessing"`
	Postprocess         bool    `yaml:"enable_postprocessing"`
	TimeoutSeconds      int     `yaml:"timeout_s"`
	DumpDir             string  `yaml:"dump_dir"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxResults    int    `yaml:"max_results"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Audio       AudioConfig     `yaml:"audio"`
	Engine      EngineConfig    `yaml:"engine"`
	History     HistoryConfig   `yaml:"history"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-listen",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			Channels:        1,
			ChunkSize:       1024,
			WindowDuration:  3.0,
			OverlapRatio:    0.5,
			VolumeThreshold: 0.01,
			MaxSilence:      3.0,
			Source:          "tone",
			FrameQueueSize:  32,
		},
		Engine: EngineConfig{
			Mode:                "mock",
			Model:               "base",
			Language:            "ko",
			ConfidenceThreshold: 0.5,
			Preprocess:          true,
			Postprocess:         true,
			TimeoutSeconds:      45,
		},
		History: HistoryConfig{
			Path:          "./data/loqa-listen.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxResults:    10000,
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
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LISTEN_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LISTEN_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LISTEN_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LISTEN_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LISTEN_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LISTEN_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LISTEN_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LISTEN_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "LISTEN_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LISTEN_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LISTEN_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LISTEN_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LISTEN_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LISTEN_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LISTEN_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LISTEN_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Audio.SampleRate, "LISTEN_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "LISTEN_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.ChunkSize, "LISTEN_AUDIO_CHUNK_SIZE")
	overrideFloat(&cfg.Audio.WindowDuration, "LISTEN_AUDIO_WINDOW_DURATION_S")
	overrideFloat(&cfg.Audio.OverlapRatio, "LISTEN_AUDIO_OVERLAP_RATIO")
	overrideFloat(&cfg.Audio.VolumeThreshold, "LISTEN_AUDIO_VOLUME_THRESHOLD")
	overrideFloat(&cfg.Audio.MaxSilence, "LISTEN_AUDIO_MAX_SILENCE_S")
	overrideString(&cfg.Audio.Source, "LISTEN_AUDIO_SOURCE")
	overrideString(&cfg.Audio.CaptureCommand, "LISTEN_AUDIO_CAPTURE_COMMAND")
	overrideInt(&cfg.Audio.FrameQueueSize, "LISTEN_AUDIO_FRAME_QUEUE_SIZE")
	overrideString(&cfg.Engine.Mode, "LISTEN_ENGINE_MODE")
	overrideString(&cfg.Engine.Command, "LISTEN_ENGINE_COMMAND")
	overrideString(&cfg.Engine.Model, "LISTEN_ENGINE_MODEL")
	overrideString(&cfg.Engine.Language, "LISTEN_ENGINE_LANGUAGE")
	overrideFloat(&cfg.Engine.ConfidenceThreshold, "LISTEN_ENGINE_CONFIDENCE_THRESHOLD")
	overrideBool(&cfg.Engine.Preprocess, "LISTEN_ENGINE_PREPROCESSING")
	overrideBool(&cfg.Engine.Postprocess, "LISTEN_ENGINE_POSTPROCESSING")
	overrideInt(&cfg.Engine.TimeoutSeconds, "LISTEN_ENGINE_TIMEOUT_S")
	overrideString(&cfg.Engine.DumpDir, "LISTEN_ENGINE_DUMP_DIR")
	overrideString(&cfg.History.Path, "LISTEN_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "LISTEN_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "LISTEN_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxResults, "LISTEN_HISTORY_MAX_RESULTS")
	overrideBool(&cfg.History.VacuumOnStart, "LISTEN_HISTORY_VACUUM_ON_START")
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

// Validate rejects invalid combinations. Callers keep the previous valid
// configuration when a reload fails validation.
func Validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if err := ValidateAudio(cfg.Audio); err != nil {
		return err
	}
	switch cfg.Engine.Mode {
	case "mock", "exec":
	default:
		return errors.New("engine.mode must be one of mock|exec")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Engine.ConfidenceThreshold < 0 || cfg.Engine.ConfidenceThreshold > 1 {
		return errors.New("engine.confidence_threshold must be within [0, 1]")
	}
	if cfg.Engine.TimeoutSeconds <= 0 {
		return errors.New("engine.timeout_s must be positive")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}

// ValidateAudio checks the capture and windowing parameters. The overlap
// ratio must stay strictly below 1 so window emission always makes progress.
func ValidateAudio(a AudioConfig) error {
	if a.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if a.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if a.ChunkSize <= 0 {
		return errors.New("audio.chunk_size must be positive")
	}
	if a.WindowDuration <= 0 {
		return errors.New("audio.window_duration_s must be positive")
	}
	if a.OverlapRatio < 0 || a.OverlapRatio >= 1 {
		return errors.New("audio.overlap_ratio must be within [0, 1)")
	}
	if a.VolumeThreshold < 0 || a.VolumeThreshold > 1 {
		return errors.New("audio.volume_threshold must be within [0, 1]")
	}
	if a.MaxSilence <= 0 {
		return errors.New("audio.max_silence_s must be positive")
	}
	switch a.Source {
	case "tone", "exec":
	default:
		return errors.New("audio.source must be one of tone|exec")
	}
	if a.Source == "exec" && a.CaptureCommand == "" {
		return errors.New("audio.capture_command must be set when source=exec")
	}
	if a.FrameQueueSize <= 0 {
		return errors.New("audio.frame_queue_size must be positive")
	}
	return nil
}
