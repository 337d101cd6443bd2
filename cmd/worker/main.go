// cmd/worker/main.go
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sasaflow/wabroadcast/internal/broadcast"
	"github.com/sasaflow/wabroadcast/internal/config"
	"github.com/sasaflow/wabroadcast/internal/db"
	"github.com/sasaflow/wabroadcast/internal/events"
	"github.com/sasaflow/wabroadcast/internal/logger"
	"github.com/sasaflow/wabroadcast/internal/provider"
	"github.com/sasaflow/wabroadcast/internal/repository"
	"github.com/sasaflow/wabroadcast/internal/segment"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LoggerConfig)

	conn, err := db.Open(cfg.DatabaseConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer conn.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AmqpURL != "" {
		amqpPublisher, err := events.NewAmqpPublisher(cfg.AmqpURL, cfg.AmqpExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("AMQP connection failed")
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	campaignRepo := &repository.CampaignRepository{DB: conn}
	jobRepo := &repository.JobRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	segmentRepo := &repository.SegmentRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}
	sourceRepo := &repository.SourceRepository{DB: conn}

	resolver := &segment.Resolver{
		Sources:       sourceRepo,
		DefaultRegion: cfg.DefaultPhoneRegion,
		Log:           log,
	}
	segmentService := segment.NewService(segmentRepo, resolver, time.Duration(cfg.EstimateCacheSeconds)*time.Second)

	materializer := &broadcast.Materializer{
		Recipients: recipientRepo,
		Segments:   segmentService,
		Log:        log,
	}

	// TODO: swap the stub for the real provider client once credentials are
	// wired into config.
	sender := &broadcast.ThrottledSender{
		Provider:   &provider.StubSender{Log: log},
		Recipients: recipientRepo,
		Campaigns:  campaignRepo,
		Delay:      broadcast.PacingDelay(cfg.MessagesPerSecond),
		Sleep:      time.Sleep,
		Log:        log,
	}

	worker := &broadcast.Worker{
		ID:               broadcast.NewWorkerID(),
		PollInterval:     time.Duration(cfg.PollIntervalSeconds) * time.Second,
		BatchSize:        cfg.BatchSize,
		StaleLockTimeout: time.Duration(cfg.StaleLockSeconds) * time.Second,
		Jobs:             jobRepo,
		Campaigns:        campaignRepo,
		Recipients:       recipientRepo,
		Templates:        templateRepo,
		Materializer:     materializer,
		Sender:           sender,
		Events:           publisher,
		Log:              log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker.Run(ctx)
}
