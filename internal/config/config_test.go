package config

import (
	"os"
	"testing"
)

func clearKeys() {
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("API_KEY")
	os.Unsetenv("LOG_LEVEL")
}

func TestLoad(t *testing.T) {
	clearKeys()
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.GeminiAPIKey != "test-gemini-key" {
		t.Errorf("Expected GeminiAPIKey 'test-gemini-key', got '%s'", cfg.GeminiAPIKey)
	}
}

func TestLoad_APIKeyFallback(t *testing.T) {
	clearKeys()
	os.Setenv("API_KEY", "legacy-key")
	defer os.Unsetenv("API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.GeminiAPIKey != "legacy-key" {
		t.Errorf("Expected GeminiAPIKey from API_KEY fallback, got '%s'", cfg.GeminiAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	clearKeys()

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when GEMINI_API_KEY is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeys()
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.ChatModel != "gemini-3-flash-preview" {
		t.Errorf("Expected default ChatModel 'gemini-3-flash-preview', got '%s'", cfg.ChatModel)
	}

	if cfg.ChatTemperature != 0.8 {
		t.Errorf("Expected default ChatTemperature 0.8, got %f", cfg.ChatTemperature)
	}

	if cfg.TTSModel != "gemini-2.5-flash-preview-tts" {
		t.Errorf("Expected default TTSModel 'gemini-2.5-flash-preview-tts', got '%s'", cfg.TTSModel)
	}

	if cfg.TTSVoice != "Puck" {
		t.Errorf("Expected default TTSVoice 'Puck', got '%s'", cfg.TTSVoice)
	}

	if cfg.PlaybackSampleRate != 24000 {
		t.Errorf("Expected default PlaybackSampleRate 24000, got %d", cfg.PlaybackSampleRate)
	}

	if cfg.PlaybackChannels != 1 {
		t.Errorf("Expected default PlaybackChannels 1, got %d", cfg.PlaybackChannels)
	}

	if cfg.SpeechLocale != "ar-SA" {
		t.Errorf("Expected default SpeechLocale 'ar-SA', got '%s'", cfg.SpeechLocale)
	}

	if cfg.VADEnergyThreshold != 500.0 {
		t.Errorf("Expected default VADEnergyThreshold 500.0, got %f", cfg.VADEnergyThreshold)
	}
}

func TestConfig_SpeechCaptureEnabled(t *testing.T) {
	cfg := &Config{}
	if cfg.SpeechCaptureEnabled() {
		t.Error("Expected speech capture disabled without a Deepgram key")
	}

	cfg.DeepgramAPIKey = "dg-key"
	if !cfg.SpeechCaptureEnabled() {
		t.Error("Expected speech capture enabled with a Deepgram key")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{GeminiAPIKey: "k", PlaybackSampleRate: 0, PlaybackChannels: 1, AudioBufferSize: 1024}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	cfg.PlaybackSampleRate = 24000
	cfg.PlaybackChannels = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero channels")
	}

	cfg.PlaybackChannels = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	clearKeys()
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.RetryInitialBackoff != 200 {
		t.Errorf("Expected default RetryInitialBackoff 200, got %d", cfg.RetryInitialBackoff)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	clearKeys()
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("Expected default LogLevel 'warn', got '%s'", cfg.LogLevel)
	}

	if !cfg.LogPretty {
		t.Error("Expected default LogPretty true, got false")
	}

	if cfg.MetricsAddr != "" {
		t.Errorf("Expected metrics listener disabled by default, got '%s'", cfg.MetricsAddr)
	}
}
