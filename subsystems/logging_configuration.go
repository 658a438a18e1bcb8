package subsystems

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// LoggingConfiguration encapsulates the store's general logging configuration.
//
// See ldcomponents.LoggingConfigurationBuilder for more details on these properties.
type LoggingConfiguration struct {
	// Loggers is a configured ldlog.Loggers instance for general logging.
	Loggers ldlog.Loggers

	// LogValues is true if configuration values may be included in debug logging. Values include
	// tokens, so this is false by default.
	LogValues bool
}
