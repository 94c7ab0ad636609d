package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lyzr/launchpad/cmd/api/service"
	"github.com/lyzr/launchpad/cmd/build-reactor/consumer"
	"github.com/lyzr/launchpad/common/bootstrap"
	"github.com/lyzr/launchpad/common/notifier"
	"github.com/lyzr/launchpad/common/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bootstrap service components. Status messages go out over redis so
	// every api replica can relay them.
	components, err := bootstrap.Setup(ctx, "build-reactor",
		bootstrap.WithoutStorage(),
		bootstrap.WithRedis(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	components.Logger.Info("build-reactor starting")

	reactor := newReactor(components)
	events := consumer.NewBuildEventConsumer(components.Queue, reactor, components.Logger)
	if err := events.Start(ctx); err != nil {
		components.Logger.Error("failed to start build event consumer", "error", err)
		os.Exit(1)
	}

	components.Logger.Info("build-reactor started successfully")

	<-ctx.Done()
	components.Logger.Info("build-reactor shutting down gracefully")
}

// newReactor wires the status reactor against postgres, the gateway cache
// and the redis status channel
func newReactor(components *bootstrap.Components) *service.BuildStatusService {
	specs := service.NewSpecificationService(
		service.SpecificationStores{
			Apps:        repository.NewAppRepository(components.DB),
			Routes:      repository.NewRouteRepository(components.DB, components.Logger),
			AuthSchemes: repository.NewAuthSchemeRepository(components.DB),
			Variables:   repository.NewVariableRepository(components.DB),
		},
		components.Cache,
		components.Config.Specification.CacheTTL,
		components.Logger,
	)

	return service.NewBuildStatusService(
		repository.NewBuildJobRepository(components.DB),
		specs,
		notifier.NewRedisPublisher(components.Redis, components.Logger),
		components.Logger,
	)
}
