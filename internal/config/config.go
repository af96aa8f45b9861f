package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the Noura assistant client
type Config struct {
	// Gemini credential. API_KEY is accepted as a fallback for older deployments.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Chat completion configuration
	ChatModel       string  `envconfig:"CHAT_MODEL" default:"gemini-3-flash-preview"`
	ChatTemperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0.8"`
	ChatTopP        float32 `envconfig:"CHAT_TOP_P" default:"0.95"`
	ChatTimeout     int     `envconfig:"CHAT_TIMEOUT" default:"30"` // seconds

	// Speech synthesis configuration
	TTSModel   string `envconfig:"TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`
	TTSVoice   string `envconfig:"TTS_VOICE" default:"Puck"` // Prebuilt voice name
	TTSTimeout int    `envconfig:"TTS_TIMEOUT" default:"30"` // seconds

	// Playback configuration
	PlaybackSampleRate int    `envconfig:"PLAYBACK_SAMPLE_RATE" default:"24000"`
	PlaybackChannels   int    `envconfig:"PLAYBACK_CHANNELS" default:"1"`
	PlaybackOutputDir  string `envconfig:"PLAYBACK_OUTPUT_DIR" default:""` // WAV sink directory when speakers are unavailable

	// Speech recognition (Deepgram). Capture is disabled when the key is empty.
	DeepgramAPIKey     string  `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel      string  `envconfig:"DEEPGRAM_MODEL" default:"nova-3"`
	SpeechLocale       string  `envconfig:"SPEECH_LOCALE" default:"ar-SA"`
	CaptureSampleRate  int     `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"`
	CaptureMaxDuration int     `envconfig:"CAPTURE_MAX_DURATION" default:"15"`   // seconds
	AudioBufferSize    int     `envconfig:"AUDIO_BUFFER_SIZE" default:"65536"`   // Ring buffer size in bytes
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"40"`      // Frames of silence to end capture

	// Persona copy override (YAML). Empty uses the embedded persona.
	PersonaFile string `envconfig:"PERSONA_FILE" default:""`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"200"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"3"`         // Maximum recognizer connection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"500"`            // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel    string `envconfig:"LOG_LEVEL" default:"warn"`   // Log level: debug, info, warn, error
	LogPretty   bool   `envconfig:"LOG_PRETTY" default:"true"`  // Pretty print logs (terminal client)
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`    // e.g. 127.0.0.1:9464; empty disables the listener
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = GetEnv("API_KEY", "")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.PlaybackSampleRate <= 0 {
		return fmt.Errorf("PLAYBACK_SAMPLE_RATE must be positive, got %d", c.PlaybackSampleRate)
	}
	if c.PlaybackChannels <= 0 {
		return fmt.Errorf("PLAYBACK_CHANNELS must be positive, got %d", c.PlaybackChannels)
	}
	if c.AudioBufferSize < 2 {
		return fmt.Errorf("AUDIO_BUFFER_SIZE must be at least 2, got %d", c.AudioBufferSize)
	}
	return nil
}

// SpeechCaptureEnabled reports whether a speech recognition credential is configured
func (c *Config) SpeechCaptureEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
