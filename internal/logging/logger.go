/**
 * Logging for the contract analysis pipeline.
 *
 * Thin construction helper around phuslu/log so every component logs
 * structured key=value pairs with a component tag. Failure logs must carry
 * enough context (file path, page index) to reproduce the failure.
 */

package logging

import (
	"os"
	"strings"

	"github.com/phuslu/log"
)

// New returns a logger tagged with the given component name.
func New(component string) log.Logger {
	return log.Logger{
		Level:   levelFromEnv(),
		Context: log.NewContext(nil).Str("component", component).Value(),
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			QuoteString:    true,
			EndWithMessage: true,
			Writer:         os.Stdout,
		},
	}
}

// levelFromEnv reads LOG_LEVEL (debug, info, warn, error). Defaults to info.
func levelFromEnv() log.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
