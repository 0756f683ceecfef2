//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/events/bus"
	"github.com/entitykit/entitykit/internal/core/observability/log"
	"github.com/entitykit/entitykit/internal/core/world"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return log.New(log.LevelDebug)
}

func ProvideWorld(behaviours *behaviour.Registry, opts world.Options) *world.World {
	wire.Build(bus.New, log.Provide, wire.Bind(new(log.Log), new(*log.Logger)), world.New)
	return nil
}
