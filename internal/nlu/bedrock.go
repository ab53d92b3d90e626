package nlu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// anthropicBedrockVersion is the wire version Bedrock expects for
// Anthropic models.
const anthropicBedrockVersion = "bedrock-2023-05-31"

// BedrockClient implements Client against Anthropic models hosted on
// AWS Bedrock.
type BedrockClient struct {
	runtime *bedrockruntime.Client
	modelID string
}

// BedrockConfig holds configuration for the Bedrock client.
type BedrockConfig struct {
	Region  string
	ModelID string
}

// NewBedrockClient creates a Bedrock-backed completion client using the
// default AWS credential chain.
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*BedrockClient, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock model id required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockClient{
		runtime: bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// CompleteWithSystem invokes the model with a system prompt and a single
// user message, returning the first text block of the response.
func (c *BedrockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicBedrockVersion,
		MaxTokens:        1000,
		System:           systemPrompt,
		Messages:         []anthropicMessage{{Role: "user", Content: userPrompt}},
		Temperature:      0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse bedrock response: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in bedrock response")
}
