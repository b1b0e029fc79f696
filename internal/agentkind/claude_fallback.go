package agentkind

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

// ClaudeClient wraps the Anthropic SDK for the direct-API fallback path:
// used by the AI-assisted merge fallback when a project has no
// merge-agent executable (mergeai.Resolver.ExecutablePath is empty), for
// single-shot completions rather than an autonomous tool-using session.
// Agent-kind processes have no such fallback: Process.Start fails when
// no executable is configured.
type ClaudeClient struct {
	inner anthropic.Client
	model anthropic.Model
}

// ClaudeClientConfig configures a ClaudeClient.
type ClaudeClientConfig struct {
	Model         anthropic.Model
	APIKey        string
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
}

// NewClaudeClient builds a ClaudeClient from cfg, falling back to the
// ANTHROPIC_API_KEY environment variable when cfg.APIKey is empty. When
// cfg.UseAWSBedrock is set, credentials are resolved through the AWS SDK's
// default config chain instead of an API key.
func NewClaudeClient(cfg ClaudeClientConfig) (*ClaudeClient, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()
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
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set and no API key was provided")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return &ClaudeClient{inner: anthropic.NewClient(opts...), model: model}, nil
}

var bedrockModels = map[anthropic.Model]string{
	anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
}

func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	if translated, ok := bedrockModels[model]; ok {
		return anthropic.Model(translated)
	}
	return model
}

// Complete sends one system+user turn and returns the concatenated text
// of the response, with no tool use and no conversation loop: the
// fallback path answers one question (resolve this conflict, review this
// plan) rather than driving its own multi-step session.
func (c *ClaudeClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8192,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt))},
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String(), nil
}
