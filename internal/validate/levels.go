// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevels are the level names accepted in configuration, most verbose first.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// ErrInvalidLogLevel is returned for level names outside LogLevels.
var ErrInvalidLogLevel = errors.New("invalid log level (must be one of: " + strings.Join(LogLevels, ", ") + ")")

// ParseLogLevel maps a configured level name onto zerolog. Levels that would
// silence errors (fatal, panic, disabled) are rejected along with unknown names.
func ParseLogLevel(s string) (zerolog.Level, error) {
	for _, name := range LogLevels {
		if s == name {
			return zerolog.ParseLevel(s)
		}
	}
	return zerolog.NoLevel, ErrInvalidLogLevel
}
