package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
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

type Params struct {
	UserID   string               `json:"user_id"`
	Message  string               `json:"message"`
	Snapshot coordinator.Snapshot `json:"snapshot"`
	History  []HistoryMessage     `json:"history,omitempty"`
}

type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type Results struct {
	Output string `json:"output"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
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

		userID, err := uuid.Parse(params.UserID)
		if err != nil {
			return Results{}, fmt.Errorf("user_id must be a valid UUID: %w", err)
		}
		if strings.TrimSpace(params.Message) == "" {
			return Results{}, fmt.Errorf("message is required")
		}

		st, err := store.Open(postgres.Open(dbConfig.DSN))
		if err != nil {
			slog.Error("SETUP: Failed to open store", "error", err)
			return Results{}, err
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			slog.Error("SETUP: Failed to load AWS config", "error", err)
			return Results{}, err
		}

		var imageStore images.Store = images.NewMemoryStore()
		if imageConfig.Bucket != "" {
			imageStore = images.NewS3Store(s3.NewFromConfig(awsCfg), imageConfig.Bucket)
		}

		registry, err := tools.NewRegistry(st, imageStore)
		if err != nil {
			slog.Error("SETUP: Failed to create tool registry", "error", err)
			return Results{}, err
		}

		_, _, otelShutdown, err := nutriagent.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
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

		timezone := params.Snapshot.Timezone
		if timezone == "" {
			timezone = agentConfig.DefaultTimezone
		}

		messages := make([]coordinator.Message, 0, len(params.History)+1)
		for _, m := range params.History {
			messages = append(messages, coordinator.Message{
				Role:    m.Role,
				Content: coordinator.MessageParts{{Type: "text", Text: m.Text}},
			})
		}
		messages = append(messages, coordinator.Message{
			Role:    "user",
			Content: coordinator.MessageParts{{Type: "text", Text: params.Message}},
		})

		turn := coordinator.Turn{
			ExecContext: tools.ExecContext{UserID: userID, Timezone: timezone},
			Snapshot:    params.Snapshot,
			Messages:    messages,
		}

		c := coordinator.NewCoordinator(llm, registry, coordinator.NewContextBuilder(st), agentConfig, nutriagent.NewStdoutTurnLogger())
		output, err := c.Run(ctx, turn)
		if err != nil {
			slog.Error("RESULT: Turn failed", "error", err)
			return Results{}, err
		}

		return Results{Output: output}, nil
	}

	lambda.Start(fn)
}
