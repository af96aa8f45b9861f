package observability

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	globalLogger zerolog.Logger
	loggerOnce   sync.Once
	loggerMu     sync.RWMutex
)

// InitLogger initializes the global structured logger. Only the first call
// takes effect.
func InitLogger(level string, pretty bool) {
	InitLoggerWithWriter(level, pretty, os.Stderr)
}

// InitLoggerWithWriter is InitLogger with an explicit output. The terminal
// client logs to stderr so stdout stays free for the conversation.
func InitLoggerWithWriter(level string, pretty bool, out io.Writer) {
	loggerOnce.Do(func() {
		zerolog.SetGlobalLevel(ParseLevel(level))

		var logger zerolog.Logger
		if pretty {
			output := zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: time.RFC3339,
			}
			logger = zerolog.New(output).With().Timestamp().Logger()
		} else {
			logger = zerolog.New(out).With().Timestamp().Logger()
		}

		loggerMu.Lock()
		globalLogger = logger
		loggerMu.Unlock()

		log.Logger = logger
	})
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the global logger
func GetLogger() zerolog.Logger {
	InitLogger("info", false)

	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// Component returns a logger tagged with a component name
func Component(name string) zerolog.Logger {
	return GetLogger().With().Str("component", name).Logger()
}

// WithConversationID creates a logger scoped to one conversation
func WithConversationID(conversationID string) zerolog.Logger {
	if conversationID == "" {
		conversationID = NewConversationID()
	}
	return GetLogger().With().Str("conversation_id", conversationID).Logger()
}

// NewConversationID generates a new conversation ID
func NewConversationID() string {
	return uuid.New().String()
}
