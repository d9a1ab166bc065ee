package test

import (
	"os"

	logging "github.com/op/go-logging"
)

var testLogFormat = logging.MustStringFormatter(`[%{level}] [%{module}/%{shortfunc}] %{message}`)

// NewLogger returns a stderr backend that drops records below level.
func NewLogger(level logging.Level) logging.LeveledBackend {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), testLogFormat)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(level, "")
	return leveled
}
