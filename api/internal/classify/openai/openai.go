package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/util"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model string) *Engine {
	return &Engine{
		APIKey:  key,
		Model:   model,
		BaseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }
func (e *Engine) ClassCount() int  { return len(classify.Known) }

func (e *Engine) WithModel(model string) classify.Engine {
	cp := *e
	cp.Model = strings.TrimSpace(model)
	return &cp
}

func (e *Engine) Predict(ctx context.Context, img []byte, mime string) ([]classify.Prediction, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	dataURL := util.MakeDataURL(util.PickMIME(mime, "", img), img)

	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": classify.VisionPrompt()},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": classify.VisionUserPrompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "low"}},
				},
			},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai predict %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("openai predict: empty response")
	}
	preds, err := classify.ParseLLMResponse(raw.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai predict: %w", err)
	}
	return preds, nil
}
