package bootstrap

import (
	"context"
	"fmt"
	"time"

	"ai-report-be/internal/config"
	"ai-report-be/internal/controller"
	"ai-report-be/internal/events"
	"ai-report-be/internal/handler"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/pkg/serverutils"
	"ai-report-be/internal/repository/contract"
	"ai-report-be/internal/repository/memory"
	"ai-report-be/internal/repository/redisstore"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/internal/service"
	pktNats "ai-report-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	ReportController   controller.IReportController
	DocumentController controller.IDocumentController
	StatusHandler      *handler.ReportStatusHandler

	// Background services, started by main.go
	ConsumerService service.IConsumerService
	ReportService   service.IReportService
	NatsSubscriber  *pktNats.Subscriber

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 2. In-process bus for indexing and queued runs
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. External infrastructure, optional
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable, lifecycle events disabled", map[string]interface{}{"error": err.Error()})
	} else {
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		c.NatsSubscriber = natsSub
		c.closers = append(c.closers, natsSub.Close)
	}

	statusRepo, err := newRunStatusRepository(cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	// 4. Pipeline
	pipeline, err := NewPipeline(cfg, uowFactory, sysLogger)
	if err != nil {
		return nil, err
	}

	var bus events.EventBus
	if natsPub != nil {
		bus = natsPub
	}
	eventPublisher := events.NewNatsPublisher(bus, sysLogger)

	// 5. Services
	indexQueue := service.NewPublisherService(cfg.Keys.IndexTopic, pubSub)
	reportQueue := service.NewPublisherService(cfg.Keys.ReportTopic, pubSub)

	reportService := service.NewReportService(
		uowFactory,
		pipeline.Sources,
		pipeline.Extractor,
		pipeline.Synthesizer,
		pipeline.Config,
		statusRepo,
		eventPublisher,
		reportQueue,
		sysLogger,
	)
	documentService := service.NewDocumentService(uowFactory, indexQueue, sysLogger)

	c.ReportService = reportService
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		service.ConsumerConfig{
			IndexTopic:   cfg.Keys.IndexTopic,
			ReportTopic:  cfg.Keys.ReportTopic,
			ChunkSize:    cfg.Retrieval.ChunkSize,
			ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		},
		uowFactory,
		pipeline.Embedder,
		reportService,
		sysLogger,
	)

	// 6. Controllers
	auth := serverutils.NewJwtMiddleware(cfg.App.JwtSecret)
	c.ReportController = controller.NewReportController(reportService, auth)
	c.DocumentController = controller.NewDocumentController(documentService, auth)
	c.StatusHandler = handler.NewReportStatusHandler(reportService, auth, cfg.Pipeline.RunTimeout+time.Minute, sysLogger)

	return c, nil
}

func newRunStatusRepository(cfg *config.Config, log logger.ILogger) (contract.RunStatusRepository, error) {
	switch cfg.App.StatusStore {
	case "redis":
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis status store: %w", err)
		}
		log.Info("BOOTSTRAP", "Run status store: redis", nil)
		return redisstore.NewRunStatusRepository(rdb, cfg.App.StatusTTL), nil
	case "", "memory":
		log.Info("BOOTSTRAP", "Run status store: memory", nil)
		return memory.NewRunStatusRepository(cfg.App.StatusTTL), nil
	default:
		return nil, fmt.Errorf("unknown STATUS_STORE %q", cfg.App.StatusStore)
	}
}

// Close releases bus and broker connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
