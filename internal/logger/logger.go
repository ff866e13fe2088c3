package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"tipwall/config"
)

// New builds the process logger. Production emits JSON; a LOG_FILE switches
// output to a rotating file.
func New(cfg *config.LogConfig, env string) *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if env == "production" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File != "" {
		l.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	} else {
		l.SetOutput(os.Stdout)
	}
	return l
}
