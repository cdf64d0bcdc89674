package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Providers accepted by New.
const (
	ProviderNone      = ""
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// DefaultMaxTokens caps a completion when Config.MaxTokens is unset.
const DefaultMaxTokens = 4096

// Config selects and configures a model provider.
type Config struct {
	Provider   string `yaml:"provider,omitempty"`
	Model      string `yaml:"model,omitempty"`
	APIKey     string `yaml:"apiKey,omitempty"`
	BaseURL    string `yaml:"baseURL,omitempty"`
	MaxTokens  int    `yaml:"maxTokens,omitempty"`
	AWSRegion  string `yaml:"awsRegion,omitempty"`
	AWSProfile string `yaml:"awsProfile,omitempty"`
}

// New builds the configured model. It returns a nil Model and no error when
// no provider is configured; callers treat that as offline mode.
func New(ctx context.Context, cfg Config) (Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderNone, "none", "offline":
		return nil, nil
	case ProviderAnthropic, ProviderBedrock:
		return NewAnthropic(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// Anthropic calls Claude through the Anthropic API or AWS Bedrock.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// Compile-time interface check.
var _ Model = (*Anthropic)(nil)

// NewAnthropic creates a Claude-backed Model. With the bedrock provider,
// credentials come from the default AWS chain; otherwise the API key comes
// from cfg or ANTHROPIC_API_KEY.
func NewAnthropic(ctx context.Context, cfg Config) (*Anthropic, error) {
	var opts []option.RequestOption

	bedrockMode := strings.EqualFold(cfg.Provider, ProviderBedrock)
	if bedrockMode {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	if bedrockMode && !strings.Contains(string(model), "anthropic.") {
		model = anthropic.Model("us.anthropic." + string(model) + "-v1:0")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Complete sends the conversation and returns the concatenated text blocks
// of the reply.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, turn := range req.Messages {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
