// cmd/server/main.go
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sasaflow/wabroadcast/internal/broadcast"
	"github.com/sasaflow/wabroadcast/internal/config"
	"github.com/sasaflow/wabroadcast/internal/db"
	"github.com/sasaflow/wabroadcast/internal/events"
	"github.com/sasaflow/wabroadcast/internal/handler"
	"github.com/sasaflow/wabroadcast/internal/logger"
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

	broadcastService := &broadcast.Service{
		Campaigns:  campaignRepo,
		Jobs:       jobRepo,
		Recipients: recipientRepo,
		Templates:  templateRepo,
		Segments:   segmentRepo,
		Events:     publisher,
		Log:        log,
	}

	campaignHandler := &handler.CampaignHandler{
		Broadcasts: broadcastService,
		Segments:   segmentService,
	}

	r := chi.NewRouter()
	campaignHandler.Routes(r)

	addr := cfg.WebConfig.Host + ":" + cfg.WebConfig.Port
	log.Info().Str("addr", addr).Msg("server running")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
