package core

import log "github.com/sirupsen/logrus"

// Logger is the package-level default logger. Subsystems constructed
// without an explicit logger fall back to it; a node binary embedding this
// package typically swaps in its own configured instance at startup.
var Logger = newDefaultLogger()

func newDefaultLogger() *log.Logger {
	l := log.New()
	l.SetFormatter(&log.JSONFormatter{})
	return l
}
