package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"hospital-management/backend/pkg/secrets"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"

// GeminiProvider calls the Gemini generateContent REST API. The API key is
// resolved through the secrets manager on first use, not at construction.
type GeminiProvider struct {
	model          string
	httpClient     *http.Client
	maxOutputChars int
	temperature    float64

	keyOnce sync.Once
	key     string
	keyErr  error
}

// GeminiConfig configures the provider.
type GeminiConfig struct {
	Model          string
	Timeout        time.Duration
	MaxOutputChars int
	Temperature    float64
}

// NewGeminiProvider creates a provider for the given model.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GeminiProvider{
		model:          cfg.Model,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxOutputChars: cfg.MaxOutputChars,
		temperature:    cfg.Temperature,
	}
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate implements Provider. The tenant context and the new visitor
// message are combined into the final user turn appended to the history.
func (p *GeminiProvider) Generate(ctx context.Context, contextInfo string, history []Turn, message string) (string, error) {
	key, err := p.apiKey(ctx)
	if err != nil {
		return "", err
	}

	contents := make([]geminiContent, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, geminiContent{
			Role:  turn.Role,
			Parts: []geminiPart{{Text: turn.Content}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  TurnRoleUser,
		Parts: []geminiPart{{Text: contextInfo + "\n\nUser question: " + message}},
	})

	requestBody := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: p.maxOutputChars,
			Temperature:     p.temperature,
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf(geminiEndpoint, p.model, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}

	if geminiResp.Error != nil {
		if geminiResp.Error.Status == "RESOURCE_EXHAUSTED" {
			return "", ErrRateLimited
		}
		return "", fmt.Errorf("%w: %s", ErrUnavailable, geminiResp.Error.Message)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", ErrUnavailable)
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// apiKey resolves the API key once, trying the secrets manager first and
// the GEMINI_API_KEY environment variable as a fallback.
func (p *GeminiProvider) apiKey(ctx context.Context) (string, error) {
	p.keyOnce.Do(func() {
		if key, err := secrets.GetSecret(ctx, "GEMINI_API_KEY"); err == nil && key != "" {
			p.key = key
			return
		}
		p.key = os.Getenv("GEMINI_API_KEY")
		if p.key == "" {
			p.keyErr = ErrMissingAPIKey
		}
	})
	return p.key, p.keyErr
}
