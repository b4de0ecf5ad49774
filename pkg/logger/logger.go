package logger

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.StandardLogger()

// Init configures the shared logger. Verbosity is the net -v/-q count and
// maps onto logrus levels; console controls whether log lines reach stderr
// (raw output mode disables the console so stdout stays machine-parseable,
// the rotated file sink still records the run). An empty logFilePath
// disables file logging.
func Init(verbosity int, logFilePath string, console bool) {
	log.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	})

	writers := make([]io.Writer, 0, 2)
	if console {
		writers = append(writers, os.Stderr)
	}
	if logFilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    25,
			MaxBackups: 2,
			MaxAge:     7,
		})
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(io.MultiWriter(writers...))
	}

	switch {
	case verbosity < 0:
		log.SetLevel(logrus.WarnLevel)
	case verbosity == 0:
		log.SetLevel(logrus.InfoLevel)
	case verbosity == 1:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.TraceLevel)
	}
}

func GetLogger(prefix string) *logrus.Entry {
	return log.WithField("prefix", prefix)
}
