package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger.
var Log *logrus.Logger

func init() {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	Log.SetLevel(logrus.DebugLevel)
}

// Configure switches to JSON output outside development and applies the
// requested level. An unknown level keeps the current one.
func Configure(env, level string) {
	switch strings.ToLower(env) {
	case "", "dev", "development", "test":
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		Log.SetFormatter(&logrus.JSONFormatter{})
	}
	if level == "" {
		return
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		Log.SetLevel(lvl)
	} else {
		Log.WithField("level", level).Warn("unknown log level, keeping default")
	}
}
