package main

import (
	"apartment_parking/internal/api"
	"apartment_parking/internal/api/handler"
	"apartment_parking/internal/api/middleware"
	"apartment_parking/internal/config"
	"apartment_parking/internal/iot"
	"apartment_parking/internal/logging"
	"apartment_parking/internal/realtime"
	"apartment_parking/internal/repository/postgresql"
	"apartment_parking/internal/service"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	// 1. Configuration and logging
	cfg := config.Load()
	logging.Init("apartment-parking", cfg.AppEnv)
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info().Str("env", cfg.AppEnv).Msg("configuration loaded")

	// 2. Database
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	defer db.Close()
	store := postgresql.NewStore(db)
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("database connected")

	// 3. Real-time push, optionally relayed across instances over NATS
	hub := realtime.NewHub(cfg.WSWriteTimeout)
	var relay *realtime.NATSRelay
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("apartment-parking-api"), nats.MaxReconnects(-1))
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("could not connect to NATS")
		}
		defer nc.Close()
		relay = realtime.NewNATSRelay(nc, hub)
		if err := relay.Start(); err != nil {
			log.Fatal().Err(err).Msg("could not start push relay")
		}
	} else {
		log.Info().Msg("NATS_URL not set, pushes reach only clients connected to this instance")
	}

	// 4. AWS clients
	awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatal().Err(err).Msg("could not load AWS SDK config")
	}

	var slotPublisher service.SlotPublisher
	if cfg.IoTEndpoint != "" {
		iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
			endpointWithSchema := cfg.IoTEndpoint
			if !strings.HasPrefix(endpointWithSchema, "https://") && !strings.HasPrefix(endpointWithSchema, "http://") {
				endpointWithSchema = "https://" + endpointWithSchema
			}
			o.BaseEndpoint = aws.String(endpointWithSchema)
		})
		slotPublisher = iot.NewSlotPublisher(iotDataPlaneClient)
		log.Info().Str("endpoint", cfg.IoTEndpoint).Msg("slot indicator publishing enabled")
	}

	var textDetector service.TextDetector
	if cfg.LPREnabled {
		textDetector = rekognition.NewFromConfig(awsSDKCfg)
		log.Info().Str("region", cfg.AWSRegion).Msg("licence plate recognition enabled")
	}

	// 5. Services
	dispatcher := service.NewDispatcher(store, hub, slotPublisher)
	authService := service.NewAuthService(store.Users(), cfg.JWTSecret, cfg.JWTExpirationHours)
	parkingService := service.NewParkingService(store, dispatcher)
	visitorService := service.NewVisitorService(store, dispatcher)
	requestService := service.NewRequestService(store, dispatcher)
	notificationService := service.NewNotificationService(store.Notifications())
	lprService := service.NewLPRService(textDetector, visitorService)
	gateService := service.NewGateService(visitorService)

	// 6. Gate-event consumer
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	if cfg.SQSGateQueueURL == "" {
		log.Warn().Msg("SQS_GATE_QUEUE_URL not set, gate events will not be consumed")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqs.NewFromConfig(awsSDKCfg), cfg.SQSGateQueueURL, gateService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqsConsumer.Start(consumerCtx)
			log.Info().Msg("SQS consumer stopped")
		}()
	}

	// 7. Router
	opts := api.RouterOptions{QueryTimeout: cfg.DBQueryTimeout}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		opts.LoginLimiter = middleware.NewRedisRateLimiter(rdb, "login", cfg.LoginRateLimit, cfg.LoginRateWindow)
		log.Info().Int("limit", cfg.LoginRateLimit).Dur("window", cfg.LoginRateWindow).Msg("login rate limiting enabled")
	}

	router := api.SetupRouter(api.Services{
		Auth:          authService,
		Parking:       parkingService,
		Visitors:      visitorService,
		Requests:      requestService,
		Notifications: notificationService,
		LPR:           lprService,
	}, store, handler.NewWebSocketHandler(hub), opts)

	// 8. HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	cancelConsumer()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shut down")
	}
	if relay != nil {
		relay.Stop()
	}
	hub.Close()

	if cfg.SQSGateQueueURL != "" {
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
		case <-time.After(5 * time.Second):
			log.Warn().Msg("SQS consumer did not stop within 5s")
		}
	}

	log.Info().Msg("server stopped")
}
