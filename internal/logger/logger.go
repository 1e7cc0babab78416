package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

type Entry = logrus.Entry

type Fields = logrus.Fields

// Init configures the JSON formatter and the level. An unknown level
// falls back to info; DEBUG=true forces debug.
func Init(level string) {
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	Log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if os.Getenv("DEBUG") == "true" {
		lvl = logrus.DebugLevel
	}
	Log.SetLevel(lvl)
}
