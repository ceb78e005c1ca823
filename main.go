package main

import (
	"os"
	"os/signal"
	"syscall"

	api "outreach-backend/cmd/api"
	deviceDelivery "outreach-backend/internal/device/delivery"
	deviceDomain "outreach-backend/internal/device/domain"
	deviceRepo "outreach-backend/internal/device/repository"
	"outreach-backend/internal/notify"
	notifyDelivery "outreach-backend/internal/notify/delivery"
	"outreach-backend/internal/outreach"
	outreachDelivery "outreach-backend/internal/outreach/delivery"
	"outreach-backend/pkg/ai"
	"outreach-backend/pkg/apns"
	"outreach-backend/pkg/config"
	"outreach-backend/pkg/database"
	"outreach-backend/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("outreach-backend", cfg.LogLevel)

	db, err := database.NewSQLiteConnection(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open registry database")
	}
	if err := db.AutoMigrate(&deviceDomain.Device{}); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate registry database")
	}

	repo := deviceRepo.NewDeviceRepository(db)

	// A missing or invalid signing key is fatal: the service is useless
	// without a working gateway client.
	client, err := apns.NewClient(apns.Config{
		KeyPath:    cfg.APNSKeyPath,
		KeyID:      cfg.APNSKeyID,
		TeamID:     cfg.APNSTeamID,
		Topic:      cfg.APNSTopic,
		Production: cfg.APNSProduction,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway client")
	}

	notifier := notify.NewService(repo, client, log)
	generator := ai.NewHTTPGenerator(cfg.GeneratorURL, cfg.GeneratorTimeout)

	scheduler := outreach.NewScheduler(outreach.Config{
		MorningCron:      cfg.MorningCron,
		EveningCron:      cfg.EveningCron,
		GeneratorTimeout: cfg.GeneratorTimeout,
	}, notifier, generator, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	handler := api.NewHandler(cfg,
		deviceDelivery.NewDeviceHandler(repo, log),
		notifyDelivery.NewNotifyHandler(notifier, scheduler, log),
		outreachDelivery.NewScheduleHandler(scheduler, log),
	)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("server starting")
		if err := handler.Start(cfg.Addr()); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	scheduler.Stop()
}
