package syncstore

import (
	"github.com/google/uuid"

	"github.com/snapshelf/syncstore/ldcomponents"
	"github.com/snapshelf/syncstore/subsystems"
)

func newClientContextFromConfig(config Config) (subsystems.BasicClientContext, error) {
	replicaID := config.ReplicaID
	if replicaID == "" {
		replicaID = uuid.NewString()
	}

	basicContext := subsystems.BasicClientContext{ReplicaID: replicaID}

	loggingFactory := config.Logging
	if loggingFactory == nil {
		loggingFactory = ldcomponents.Logging()
	}
	logging, err := loggingFactory.Build(basicContext)
	if err != nil {
		return subsystems.BasicClientContext{}, err
	}
	basicContext.Logging = logging

	httpFactory := config.HTTP
	if httpFactory == nil {
		httpFactory = ldcomponents.HTTPConfiguration()
	}
	http, err := httpFactory.Build(basicContext)
	if err != nil {
		return subsystems.BasicClientContext{}, err
	}
	basicContext.HTTP = http

	return basicContext, nil
}
