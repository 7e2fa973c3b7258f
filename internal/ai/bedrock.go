package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"autoblog/pkg/host"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const anthropicVersion = "bedrock-2023-05-31"

// Invoker is the part of the Bedrock runtime client the generator uses.
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig configures the Bedrock generator.
type BedrockConfig struct {
	Region     string        `mapstructure:"region"`
	ModelID    string        `mapstructure:"model_id"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	MaxRetries uint64        `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`

	// RetryInterval is the first backoff interval.
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// DefaultBedrockConfig returns sensible defaults
func DefaultBedrockConfig() BedrockConfig {
	return BedrockConfig{
		Region:     "us-east-1",
		ModelID:    "anthropic.claude-3-haiku-20240307-v1:0",
		MaxTokens:  2048,
		MaxRetries: 3,
		Timeout:    2 * time.Minute,

		RetryInterval: time.Second,
	}
}

// Bedrock generates text with an Anthropic model on Amazon Bedrock.
type Bedrock struct {
	client Invoker
	cfg    BedrockConfig
	logger *zap.Logger
}

var _ host.TextGenerator = (*Bedrock)(nil)

// NewBedrock creates a generator that calls client.
func NewBedrock(client Invoker, cfg BedrockConfig, logger *zap.Logger) *Bedrock {
	def := DefaultBedrockConfig()
	if cfg.ModelID == "" {
		cfg.ModelID = def.ModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bedrock{client: client, cfg: cfg, logger: logger.Named("ai.bedrock")}
}

// NewBedrockFromConfig loads AWS credentials the default way.
func NewBedrockFromConfig(ctx context.Context, cfg BedrockConfig, logger *zap.Logger) (*Bedrock, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg, logger), nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Temperature      *float64  `json:"temperature,omitempty"`
	Messages         []message `json:"messages"`
}

func (b *Bedrock) body(p host.Prompt) ([]byte, error) {
	req := messagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.cfg.MaxTokens,
		System:           p.System,
		Messages:         []message{{Role: "user", Content: p.User}},
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = p.MaxTokens
	}
	if p.Temperature > 0 {
		t := p.Temperature
		req.Temperature = &t
	}
	return json.Marshal(req)
}

// Generate invokes the model, retrying throttling and transient failures.
func (b *Bedrock) Generate(ctx context.Context, p host.Prompt) (string, error) {
	if strings.TrimSpace(p.User) == "" {
		return "", errors.New("prompt is empty")
	}
	body, err := b.body(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.cfg.RetryInterval
	bo.MaxInterval = 20 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, b.cfg.MaxRetries), ctx)

	var out *bedrockruntime.InvokeModelOutput
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		res, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(b.cfg.ModelID),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			b.logger.Warn("Bedrock invocation failed, retrying",
				zap.String("model", b.cfg.ModelID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		out = res
		return nil
	}, policy)
	if err != nil {
		return "", fmt.Errorf("failed to invoke model %s: %w", b.cfg.ModelID, err)
	}

	return parseMessagesResponse(out.Body)
}

// parseMessagesResponse joins the text blocks of a messages API response.
func parseMessagesResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid response body")
	}
	res := gjson.ParseBytes(body)
	var parts []string
	res.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			parts = append(parts, block.Get("text").String())
		}
		return true
	})
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func retryable(err error) bool {
	var throttled *types.ThrottlingException
	var unavailable *types.ServiceUnavailableException
	var internal *types.InternalServerException
	var timeout *types.ModelTimeoutException
	var notReady *types.ModelNotReadyException
	return errors.As(err, &throttled) ||
		errors.As(err, &unavailable) ||
		errors.As(err, &internal) ||
		errors.As(err, &timeout) ||
		errors.As(err, &notReady)
}
