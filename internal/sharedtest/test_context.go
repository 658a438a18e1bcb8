package sharedtest

import (
	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/subsystems"
)

// NewSimpleTestContext returns a basic implementation of subsystems.ClientContext for use in test code.
func NewSimpleTestContext(replicaID string) subsystems.BasicClientContext {
	return NewTestContext(replicaID, "", nil, nil)
}

// NewTestContext returns a basic implementation of subsystems.ClientContext for use in test code.
func NewTestContext(
	replicaID string,
	class interfaces.Class,
	optHTTPConfig *subsystems.HTTPConfiguration,
	optLoggingConfig *subsystems.LoggingConfiguration,
) subsystems.BasicClientContext {
	ret := subsystems.BasicClientContext{ReplicaID: replicaID, Class: class}
	if optHTTPConfig != nil {
		ret.HTTP = *optHTTPConfig
	}
	if optLoggingConfig != nil {
		ret.Logging = *optLoggingConfig
	} else {
		ret.Logging = TestLoggingConfig()
	}
	return ret
}

// TestLoggingConfig returns a LoggingConfiguration corresponding to NewTestLoggers().
func TestLoggingConfig() subsystems.LoggingConfiguration {
	return subsystems.LoggingConfiguration{Loggers: NewTestLoggers()}
}
