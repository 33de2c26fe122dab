// Package log provides the loggers used by plinth components.
package log

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("PLINTH_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance. PLINTH_DEBUG enables the debug
// level.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
