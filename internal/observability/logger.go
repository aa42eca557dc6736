package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a logger for one node component from the process
// logger configured by internal/logging.
func ComponentLogger(component, node string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Str("node", node).Logger()
}
