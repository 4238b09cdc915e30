package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/litigraph/backend/internal/queue"
	"github.com/litigraph/backend/internal/storage"
	"github.com/litigraph/backend/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/litigraph/backend/pkg/ai"
	oai "github.com/litigraph/backend/pkg/ai/ollama"
	gai "github.com/litigraph/backend/pkg/ai/openai"
	"github.com/litigraph/backend/pkg/logger"
	"github.com/litigraph/backend/pkg/logger/console"
	"github.com/litigraph/backend/pkg/ocr"

	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	s3Client := storage.NewS3Client(ctx)

	adapter := util.GetEnv("AI_ADAPTER")
	var visionClient ai.VisionClient

	switch adapter {
	case "ollama":
		client, err := oai.NewVisionOllamaClient(oai.NewVisionOllamaClientParams{
			BaseURL:               util.GetEnv("AI_VISION_URL"),
			ApiKey:                util.GetEnv("AI_VISION_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_MAX_CONCURRENT", 2)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		visionClient = client
	default:
		visionClient = gai.NewVisionOpenAIClient(gai.NewVisionOpenAIClientParams{
			BaseURL:               util.GetEnv("AI_VISION_URL"),
			ApiKey:                util.GetEnv("AI_VISION_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_MAX_CONCURRENT", 2)),
		})
	}

	ocrEngine := ocr.NewEngine(ocr.NewEngineParams{
		Client:        visionClient,
		PrimaryModel:  util.GetEnv("OCR_PRIMARY_MODEL"),
		FallbackModel: util.GetEnv("OCR_FALLBACK_MODEL"),
		Preprocess:    util.GetEnvBool("OCR_PREPROCESS", true),
		Parallel:      util.GetEnvInt("OCR_PARALLEL", 2),
	})

	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	migrationsURL := util.GetEnvString("MIGRATIONS_URL", "file://internal/storage/migrations")
	if err := storage.Migrate(migrationsURL, util.GetEnv("DATABASE_URL")); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	processor := queue.NewProcessor(queue.NewProcessorParams{
		S3Client:     s3Client,
		Pool:         pgConn,
		OCR:          ocrEngine,
		HashFile:     hashFile,
		TokenEncoder: util.GetEnvString("TOKEN_ENCODER", "o200k_base"),
	})

	logger.Info("Listening for messages")

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.IngestQueue:
					processingErr = processor.ProcessIngest(ctx, string(qm.msg.Body))
				}

				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := visionClient.GetMetrics()
				logger.Info(
					"OCR metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration_ms", metrics.DurationMs,
				)
				visionClient.ResetMetrics()

				logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

// hashFile streams a staged file through sha256 for the integrity record.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
