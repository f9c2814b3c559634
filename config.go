package nutriagent

import "time"

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID,required"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	MaxSteps        int           `env:"MAX_STEPS,default=10"`
	StepTimeout     time.Duration `env:"STEP_TIMEOUT,default=30s"`
	DefaultTimezone string        `env:"DEFAULT_TIMEZONE,default=UTC"`
}

type DatabaseConfig struct {
	DSN string `env:"DATABASE_DSN,required"`
}

type ImageStoreConfig struct {
	Bucket string `env:"IMAGE_BUCKET"`
}
