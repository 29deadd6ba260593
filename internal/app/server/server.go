package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"batterycare/internal/api"
	"batterycare/internal/attribution"
	"batterycare/internal/config"
	"batterycare/internal/device"
	"batterycare/internal/engine"
	"batterycare/internal/logbook"
	"batterycare/internal/metrics"
	"batterycare/internal/permissions"
	"batterycare/internal/remoteconfig"
	"batterycare/internal/storage"
)

// Run is the composition root: every service is constructed here and passed
// down explicitly, nothing reaches for a global instance.
func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.Open(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()
	settings := storage.NewSettings(store)

	// Device collaborators
	ids := device.NewIdentifiers(cfg.Device.AdID, cfg.Device.OneSignalID)
	registrar := device.NoopRegistrar{}

	// Attribution
	attrib := attribution.NewClient(rootCtx, attribution.IdleSource{}, ids, settings)

	// Permissions; tracking approval authorizes the ad id and starts
	// attribution, notification approval registers for push
	prompter := permissions.StaticPrompter{
		Notification: permissions.ParseStatus(cfg.Device.Notification),
		Tracking:     permissions.ParseStatus(cfg.Device.Tracking),
	}
	gateway := permissions.NewGateway(prompter,
		permissions.WithTrackingApproved(func() {
			ids.AuthorizeTracking()
			attrib.Start(rootCtx)
		}),
		permissions.WithNotificationApproved(registrar.Register),
	)

	// Remote config
	remote := remoteconfig.New(remoteconfig.NewHTTPFetcher(cfg.Remote.Endpoint), settings, cfg.MinFetchInterval())
	defer remote.Stop()

	// Orchestrator
	orch := engine.New(cfg.App.BundleID, cfg.Watchdog(), engine.Deps{
		Remote:      remote,
		Gateway:     gateway,
		Attribution: attrib,
		Metrics:     metrics.NewClient(),
		Settings:    settings,
		AdID:        ids,
		Push:        ids,
	})
	orch.Run(rootCtx)

	// HTTP
	h := api.NewHandler(orch, logbook.Batteries(store), logbook.Notes(store), logbook.Reminders(store))
	r := api.Router(h)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
