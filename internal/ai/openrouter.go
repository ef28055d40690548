package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenRouterProvider struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	Client     *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model    string          `json:"model"`
	Messages []openRouterMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenRouterProvider) do(ctx context.Context, path string, body any, out any) error {
	if p.Client == nil {
		return errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return errors.New("openrouter: api key is required")
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s%s", strings.TrimRight(p.BaseURL, "/"), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("openrouter: %s", msg)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", errors.New("openrouter: model is required")
	}

	reqBody := openRouterChatReq{
		Model:  model,
		Stream: false,
		Messages: func() []openRouterMsg {
			out := make([]openRouterMsg, 0, len(messages))
			for _, m := range messages {
				out = append(out, openRouterMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}

	var decoded openRouterChatResp
	if err := p.do(ctx, "/chat/completions", reqBody, &decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}

type openRouterEmbedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openRouterEmbedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenRouterProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	model := strings.TrimSpace(p.EmbedModel)
	if model == "" {
		return nil, errors.New("openrouter: embed model is required")
	}

	var decoded openRouterEmbedResp
	if err := p.do(ctx, "/embeddings", openRouterEmbedReq{Model: model, Input: text}, &decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, errors.New("openrouter: empty embedding")
	}
	return decoded.Data[0].Embedding, nil
}
