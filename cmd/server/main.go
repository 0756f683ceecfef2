package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entitykit/entitykit/internal/config"
	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/events/bus"
	"github.com/entitykit/entitykit/internal/core/observability/log"
	"github.com/entitykit/entitykit/internal/core/world"
	"github.com/entitykit/entitykit/internal/gateway"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := log.New(log.ParseLevel(cfg.Log.Level))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", log.Error(err))
	}
}

func run(cfg config.Config, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := bus.New()

	behaviours := behaviour.NewRegistry()
	if err := behaviour.RegisterBuiltins(behaviours, eventBus); err != nil {
		return fmt.Errorf("register behaviours: %w", err)
	}

	w := world.New(behaviours, eventBus, logger, world.Options{
		MailboxSize:    cfg.World.MailboxSize,
		CallTimeout:    cfg.World.CallTimeout.Std(),
		RegistryShards: cfg.World.RegistryShards,
	})
	for _, a := range cfg.Archetypes {
		w.RegisterArchetype(world.Archetype{
			Name:       a.Name,
			Behaviours: a.Behaviours,
			Attributes: a.Attributes.EntityAttributes(),
		})
		logger.Info("archetype registered", log.String("name", a.Name))
	}

	gw, err := gateway.New(w, behaviours, gateway.Options{
		WebSocketAddr: cfg.Gateway.WebSocketAddr,
		QUICAddr:      cfg.Gateway.QUICAddr,
		CertFile:      cfg.Gateway.CertFile,
		KeyFile:       cfg.Gateway.KeyFile,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	gatewayErr := make(chan error, 1)
	go func() { gatewayErr <- gw.Run(ctx) }()

	logger.Info("server started", log.String("behaviours", fmt.Sprint(behaviours.Names())))

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-stopCh:
		logger.Info("signal received, shutting down", log.String("signal", sig.String()))
	case err := <-gatewayErr:
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("world shutdown: %w", err)
	}
	return nil
}
