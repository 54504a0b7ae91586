// Package logging provides structured logging for the core, namespaced per
// component, backed by logrus the way the rest of the pack's production
// backends (CedrosPay, the subscription-api manifest) configure it.
package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Entry is the handle components log through. It is a thin alias so callers
// don't import logrus directly.
type Entry = logrus.Entry

// Fields is a structured key/value bag attached to a log line.
type Fields = logrus.Fields

var (
	root     *logrus.Logger
	rootOnce sync.Once
)

func base() *logrus.Logger {
	rootOnce.Do(func() {
		root = logrus.New()
		root.SetOutput(os.Stderr)
		root.SetFormatter(&logrus.JSONFormatter{})
		root.SetLevel(logrus.InfoLevel)
	})
	return root
}

// Configure sets the process-wide log level and format. Called once from the
// composition root (cmd/bridgeworker), never from library code.
func Configure(level logrus.Level, pretty bool) {
	l := base()
	l.SetLevel(level)
	if pretty {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
}

// For returns a logger namespaced to the given component, e.g.
// logging.For("billworker").
func For(component string) *Entry {
	return base().WithField("component", component)
}
