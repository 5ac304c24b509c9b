package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
)

const (
	defaultMaxTokens  = 1024
	defaultMaxRetries = 2
	defaultTimeout    = 60 * time.Second
)

// AnthropicConfig configures an Anthropic provider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, APIKeyEnv is consulted.
	APIKey    string
	APIKeyEnv string

	// UseBedrock routes requests through AWS Bedrock with the default AWS
	// credential chain instead of an API key.
	UseBedrock bool
	AWSRegion  string
	AWSProfile string

	// BaseURL overrides the API endpoint (useful for testing).
	BaseURL string

	// MaxRetries is handed to the SDK, which retries 429 and 5xx responses
	// itself. Zero uses the default of 2.
	MaxRetries int

	HTTPClient *http.Client
}

// Anthropic implements Provider on top of the official SDK.
type Anthropic struct {
	client  anthropic.Client
	bedrock bool
}

// NewAnthropic creates an Anthropic provider. A missing API key is a
// ProviderUnavailableError so the caller can degrade instead of failing.
func NewAnthropic(ctx context.Context, cfg AnthropicConfig) (*Anthropic, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			env := cfg.APIKeyEnv
			if env == "" {
				env = "ANTHROPIC_API_KEY"
			}
			apiKey = os.Getenv(env)
			if apiKey == "" {
				return nil, &evalerr.ProviderUnavailableError{
					Provider: "anthropic",
					Err:      fmt.Errorf("%s is not set", env),
				}
			}
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	}
	if retries < 0 {
		retries = 0
	}
	opts = append(opts, option.WithMaxRetries(retries))

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	opts = append(opts, option.WithHTTPClient(hc))

	return &Anthropic{client: anthropic.NewClient(opts...), bedrock: cfg.UseBedrock}, nil
}

// Name returns "anthropic" or "bedrock".
func (p *Anthropic) Name() string {
	if p.bedrock {
		return "bedrock"
	}
	return "anthropic"
}

// Complete sends a request to the Messages API. Transport failures, rate
// limiting, server errors and authentication failures are reported as
// ProviderUnavailableError.
func (p *Anthropic) Complete(ctx context.Context, req *Request) (*Response, error) {
	model := anthropic.Model(req.Model)
	if p.bedrock {
		model = BedrockModel(model)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   int64(maxTokens),
		Messages:    convertMessages(req.Messages),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			text.WriteString(variant.Text)
		}
	}

	return &Response{
		Content:    text.String(),
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func (p *Anthropic) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusTooManyRequests, code >= 500,
			code == http.StatusUnauthorized, code == http.StatusForbidden:
			return &evalerr.ProviderUnavailableError{Provider: p.Name(), Err: err}
		default:
			return fmt.Errorf("%s request rejected (HTTP %d): %w", p.Name(), code, err)
		}
	}
	return &evalerr.ProviderUnavailableError{Provider: p.Name(), Err: err}
}

func convertMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}

// BedrockModel converts a standard model name to its Bedrock cross-region
// inference profile. Unknown names are returned unchanged.
func BedrockModel(model anthropic.Model) anthropic.Model {
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	}
	if p, ok := profiles[model]; ok {
		return anthropic.Model(p)
	}
	return model
}
