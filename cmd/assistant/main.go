package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"gorm.io/driver/postgres"

	"nutriagent"
	"nutriagent/coordinator"
	"nutriagent/images"
	"nutriagent/store"
	"nutriagent/tools"
)

func main() {
	ctx := context.Background()

	var modelConfig nutriagent.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var agentConfig nutriagent.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var dbConfig nutriagent.DatabaseConfig
	if err := envdecode.Decode(&dbConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var imageConfig nutriagent.ImageStoreConfig
	if err := envdecode.Decode(&imageConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	userID, err := uuid.Parse(os.Getenv("USER_ID"))
	if err != nil {
		log.Fatalf("USER_ID must be a valid UUID: %s", err)
	}

	message := argOr(1, "What should I eat for dinner?")

	st, err := store.Open(postgres.Open(dbConfig.DSN))
	if err != nil {
		slog.Error("SETUP: Failed to open store", "error", err)
		return
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		slog.Error("SETUP: Failed to load AWS config", "error", err)
		return
	}

	var imageStore images.Store = images.NewMemoryStore()
	if imageConfig.Bucket != "" {
		imageStore = images.NewS3Store(s3.NewFromConfig(awsCfg), imageConfig.Bucket)
		slog.Info("SETUP: S3 image store initialized", "bucket", imageConfig.Bucket)
	}

	registry, err := tools.NewRegistry(st, imageStore)
	if err != nil {
		slog.Error("SETUP: Failed to create tool registry", "error", err)
		return
	}

	logger, cleanup, err := newTurnLogger(modelConfig.ModelID)
	if err != nil {
		slog.Error("SETUP: Failed to create turn logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("Failed to flush turn log", "error", err)
		}
	}()

	_, _, otelShutdown, err := nutriagent.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	llm := coordinator.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), coordinator.LLMOptions{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})

	snapshot, err := loadSnapshot()
	if err != nil {
		slog.Error("SETUP: Failed to load snapshot", "error", err)
		return
	}
	if snapshot.Timezone == "" {
		snapshot.Timezone = agentConfig.DefaultTimezone
	}
	if os.Getenv("DEBUG") != "" {
		nutriagent.Dump(snapshot)
	}

	turn := coordinator.Turn{
		ExecContext: tools.ExecContext{UserID: userID, Timezone: snapshot.Timezone},
		Snapshot:    snapshot,
		Messages: []coordinator.Message{
			{Role: "user", Content: coordinator.MessageParts{{Type: "text", Text: message}}},
		},
		OnText: func(delta string) { fmt.Print(delta) },
	}

	c := coordinator.NewCoordinator(llm, registry, coordinator.NewContextBuilder(st), agentConfig, logger)
	if _, err := c.Run(ctx, turn); err != nil {
		fmt.Println()
		slog.Error("RESULT: Turn failed", "error", err)
		return
	}
	fmt.Println()
}

// loadSnapshot reads the client context snapshot from the SNAPSHOT_JSON env
// var, falling back to sensible defaults when unset. The web frontend sends
// this per request; the CLI fakes it.
func loadSnapshot() (coordinator.Snapshot, error) {
	snapshot := coordinator.Snapshot{
		CalorieGoal: 2200,
		WaterGoal:   64,
		Units:       "imperial",
	}
	if raw := os.Getenv("SNAPSHOT_JSON"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
			return coordinator.Snapshot{}, fmt.Errorf("failed to parse SNAPSHOT_JSON: %w", err)
		}
	}
	return snapshot, nil
}

func newTurnLogger(modelID string) (nutriagent.TurnLogger, func() error, error) {
	logFilePath := nutriagent.NewTurnLogFilePath(modelID)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := nutriagent.NewFileTurnLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}
