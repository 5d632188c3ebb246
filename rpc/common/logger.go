package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/phsym/console-slog"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// sockdevLogger implements the ILogger interface on top of a slog handler
type sockdevLogger struct {
	mu     sync.RWMutex
	name   string
	level  logger.LogLevel
	logger *slog.Logger
}

func (l *sockdevLogger) SetLevel(level logger.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *sockdevLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *sockdevLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.logger.Info(fmt.Sprintf(format, args...))
	}
}

func (l *sockdevLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.logger.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *sockdevLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.logger.Error(fmt.Sprintf(format, args...))
	}
}

func (l *sockdevLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Error(message)
	panic(message)
}

func (l *sockdevLogger) enabled(level logger.LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level >= level
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	handlerOnce sync.Once
	handler     slog.Handler
	logOutput   io.Writer = os.Stdout
)

// newHandler creates the shared slog handler. A colored console handler is used
// when ENV=development, JSON lines otherwise.
func newHandler(w io.Writer) slog.Handler {
	if os.Getenv("ENV") == "development" {
		return console.NewHandler(w, &console.HandlerOptions{
			AddSource: true,
			Level:     slog.LevelDebug,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	})
}

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	handlerOnce.Do(func() {
		handler = newHandler(logOutput)
	})

	return &sockdevLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: slog.New(handler).With("logger", pkgName),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// LoggerNames lists all named loggers used by sockdev
var LoggerNames = []string{
	"rpc",
	"transport/rpc",
	"bridge",
	"executor",
	"call",
	"device",
	"client",
}

var factoryOnce sync.Once

// InitLoggers installs the slog backed factory and sets the level of all loggers
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	// Set as the global logger factory (only possible once per process)
	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
