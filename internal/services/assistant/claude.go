package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const claudeMaxTokens = 1024

type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

func NewClaudeClient(apiKey string, model string, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeClient{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (c *ClaudeClient) Generate(ctx context.Context, prompt string, image *Image) (string, error) {
	content := make([]anthropic.MessageContent, 0, 2)
	if image != nil {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				image.MIMEType,
				base64.StdEncoding.EncodeToString(image.Data),
			),
		))
	}
	content = append(content, anthropic.NewTextMessageContent(prompt))

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
		MaxTokens: claudeMaxTokens,
	})
	if err != nil {
		return "", err
	}

	var answer strings.Builder
	for _, block := range resp.Content {
		if block.Text != nil {
			answer.WriteString(*block.Text)
		}
	}
	if answer.Len() == 0 {
		return "", errors.New("no response content")
	}
	return answer.String(), nil
}
