package audio

// VADConfig holds configuration for energy-based voice activity detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Consecutive silent frames after speech that end an utterance
	FrameSize       int     // Samples per frame
}

// DefaultVADConfig returns the capture defaults: 20ms frames at 16kHz and
// 800ms of trailing silence
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   40,
		FrameSize:       320,
	}
}

// VADDetector tracks speech/silence transitions across frames. It is not
// safe for concurrent use.
type VADDetector struct {
	config         VADConfig
	silenceCounter int
	isSpeaking     bool
	heardSpeech    bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	cfg := *config
	if cfg.SilenceFrames < 1 {
		cfg.SilenceFrames = 1
	}
	if cfg.FrameSize < 1 {
		cfg.FrameSize = DefaultVADConfig().FrameSize
	}
	return &VADDetector{config: cfg}
}

// FrameSize returns the configured number of samples per frame
func (v *VADDetector) FrameSize() int {
	return v.config.FrameSize
}

// ProcessFrame processes an audio frame.
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		v.heardSpeech = true
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
		return v.isSpeaking, speechStarted, speechEnded
	}

	v.silenceCounter++
	if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
		speechEnded = true
		v.isSpeaking = false
		v.silenceCounter = 0
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.heardSpeech = false
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// HeardSpeech reports whether any speech frame was seen since the last Reset
func (v *VADDetector) HeardSpeech() bool {
	return v.heardSpeech
}

// DetectSilence detects if audio samples represent silence
func DetectSilence(samples []int16, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}
