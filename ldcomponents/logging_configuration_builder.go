package ldcomponents

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/snapshelf/syncstore/subsystems"
)

// LoggingConfigurationBuilder contains methods for configuring the store's logging behavior.
//
// If you want to set non-default values for any of these properties, create a builder with
// ldcomponents.Logging(), change its properties with the LoggingConfigurationBuilder methods, and
// store it in Config.Logging:
//
//	config := syncstore.Config{
//	    Logging: ldcomponents.Logging().MinLevel(ldlog.Warn),
//	}
type LoggingConfigurationBuilder struct {
	inited bool
	config subsystems.LoggingConfiguration
}

// Logging returns a configuration builder for the store's logging configuration.
//
// The default configuration has logging enabled with default settings, and configuration values
// are never included in log output.
func Logging() *LoggingConfigurationBuilder {
	return &LoggingConfigurationBuilder{}
}

func (b *LoggingConfigurationBuilder) checkValid() bool {
	if b == nil {
		return false
	}
	if !b.inited {
		b.config = subsystems.LoggingConfiguration{Loggers: ldlog.NewDefaultLoggers()}
		b.inited = true
	}
	return true
}

// LogValues sets whether debug log messages may include configuration values. By default only the
// names of the keys involved are logged, since values include account tokens.
func (b *LoggingConfigurationBuilder) LogValues(logValues bool) *LoggingConfigurationBuilder {
	if b.checkValid() {
		b.config.LogValues = logValues
	}
	return b
}

// Loggers specifies an instance of ldlog.Loggers to use for logging. The ldlog package contains
// methods for customizing the destination and level filtering of log output.
func (b *LoggingConfigurationBuilder) Loggers(loggers ldlog.Loggers) *LoggingConfigurationBuilder {
	if b.checkValid() {
		b.config.Loggers = loggers
	}
	return b
}

// MinLevel specifies the minimum level for log output, where ldlog.Debug is the lowest and ldlog.Error
// is the highest. Log messages at a level lower than this will be suppressed. The default is
// ldlog.Info.
//
// This is equivalent to creating an ldlog.Loggers instance, calling SetMinLevel() on it, and then
// passing it to LoggingConfigurationBuilder.Loggers().
func (b *LoggingConfigurationBuilder) MinLevel(level ldlog.LogLevel) *LoggingConfigurationBuilder {
	if b.checkValid() {
		b.config.Loggers.SetMinLevel(level)
	}
	return b
}

// Build is called internally by the store.
func (b *LoggingConfigurationBuilder) Build(
	clientContext subsystems.ClientContext,
) (subsystems.LoggingConfiguration, error) {
	if !b.checkValid() {
		defaults := LoggingConfigurationBuilder{}
		return defaults.Build(clientContext)
	}
	return b.config, nil
}

// NoLogging returns a configuration object that disables logging.
//
//	config := syncstore.Config{
//	    Logging: ldcomponents.NoLogging(),
//	}
func NoLogging() subsystems.ComponentConfigurer[subsystems.LoggingConfiguration] {
	return noLoggingConfigurationFactory{}
}

type noLoggingConfigurationFactory struct{}

func (f noLoggingConfigurationFactory) Build(
	clientContext subsystems.ClientContext,
) (subsystems.LoggingConfiguration, error) {
	return subsystems.LoggingConfiguration{Loggers: ldlog.NewDisabledLoggers()}, nil
}
