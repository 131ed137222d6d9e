package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/storybook-orderflow/internal/aws"
	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/config"
	"github.com/imrishuroy/storybook-orderflow/internal/handlers"
	"github.com/imrishuroy/storybook-orderflow/internal/idempotency"
	"github.com/imrishuroy/storybook-orderflow/internal/logging"
	"github.com/imrishuroy/storybook-orderflow/internal/metrics"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	r.Use(requestLogger(cfg.Logger))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterProductRoutes(r)
	handlers.RegisterOrdersRoutes(r, cfg)
	handlers.RegisterUploadRoutes(r, cfg)

	return r
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return func(c *gin.Context) {
		c.Next()
		if c.FullPath() == "/health" || c.FullPath() == "/metrics" {
			return
		}
		logger.WithFields(log.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Options{Service: "storybook-api", Env: cfg.AppEnv, Level: cfg.LogLevel, Text: cfg.RunLocal})

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("failed to init aws clients")
	}

	m := metrics.New()
	svc := orders.NewService(orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		orders.WithIdempotency(idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)),
		orders.WithPublisher(aws.NewPublisher(clients.SQS, cfg.QueueURL)),
		orders.WithRecorder(m),
		orders.WithLogger(logger),
	)

	r := setupRouter(handlers.HandlerConfig{
		Orders:  svc,
		Uploads: blobstore.NewS3Store(clients.S3Presign, clients.S3, cfg.UploadsBucket, cfg.UploadsPrefix, cfg.UploadURLTTL),
		Metrics: m,
		Logger:  logger,
	})

	// RUN_LOCAL=true serves HTTP directly for development.
	if cfg.RunLocal {
		logger.WithField("addr", cfg.HTTPAddr).Info("running local server")
		if err := r.Run(cfg.HTTPAddr); err != nil {
			logger.WithError(err).Fatal("failed to run local server")
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
