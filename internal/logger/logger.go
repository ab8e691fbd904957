package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

var Log = logrus.New()

type (
	Entry  = logrus.Entry
	Fields = logrus.Fields
)

// Init настраивает глобальный логгер. Для env=local используется текстовый формат,
// в остальных окружениях JSON в stdout. DEBUG=true принудительно включает debug.
func Init(env, level string) {
	if strings.EqualFold(env, "local") {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

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

// Provider возвращает запись с полем provider.
func Provider(key string) *Entry {
	return Log.WithField("provider", key)
}
