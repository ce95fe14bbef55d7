// Package tmserver: клиент сервера, который держит экспорт Teachable Machine
// (model.json + metadata.json) и отвечает вероятностями по классам.
package tmserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"waste-bot/api/internal/classify"
)

// PredictRequest: тело POST /predict.
type PredictRequest struct {
	Image string `json:"image"` // base64
	MIME  string `json:"mime,omitempty"`
}

// HealthResponse: ответ GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelVersion string `json:"model_version"`
}

type Engine struct {
	BaseURL string
	Model   string
	httpc   *http.Client

	mu     sync.RWMutex
	labels []string
}

func New(baseURL, model string, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (e *Engine) Name() string     { return "tmserver" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) ClassCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.labels)
}

func (e *Engine) Labels() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.labels...)
}

// Load читает metadata.json модели: после него известен список классов.
func (e *Engine) Load(ctx context.Context) error {
	b, err := e.get(ctx, e.BaseURL+"/metadata.json")
	if err != nil {
		return fmt.Errorf("load model metadata: %w", err)
	}
	md, err := classify.ParseMetadata(b)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.labels = md.Labels
	if e.Model == "" {
		e.Model = md.ModelName
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) Predict(ctx context.Context, img []byte, mime string) ([]classify.Prediction, error) {
	body, err := json.Marshal(PredictRequest{
		Image: base64.StdEncoding.EncodeToString(img),
		MIME:  mime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	preds := ParsePredictions(raw, e.Labels())
	if len(preds) == 0 {
		return nil, fmt.Errorf("model server returned no predictions")
	}
	return preds, nil
}

// ParsePredictions понимает четыре формы ответа:
//
//	[{"className":"paper","probability":0.9}, ...]
//	{"predictions":[...тот же массив...]}
//	{"probabilities":[0.1,0.9,...]}  (порядок как в labels)
//	{"paper":0.9,"can":0.1}
func ParsePredictions(raw []byte, labels []string) []classify.Prediction {
	root := gjson.ParseBytes(raw)

	list := root
	if p := root.Get("predictions"); p.Exists() {
		list = p
	}
	if list.IsArray() {
		var out []classify.Prediction
		list.ForEach(func(_, v gjson.Result) bool {
			name := v.Get("className")
			if !name.Exists() {
				name = v.Get("label")
			}
			prob := v.Get("probability")
			if !prob.Exists() {
				prob = v.Get("score")
			}
			if name.Exists() {
				out = append(out, classify.Prediction{ClassName: name.String(), Probability: prob.Float()})
			}
			return true
		})
		return out
	}

	if probs := root.Get("probabilities"); probs.IsArray() {
		vals := make([]float64, 0, len(labels))
		for _, v := range probs.Array() {
			vals = append(vals, v.Float())
		}
		return classify.Zip(labels, vals)
	}

	if root.IsObject() {
		// в порядке labels, чтобы равенство вероятностей решалось стабильно
		var out []classify.Prediction
		seen := map[string]bool{}
		for _, l := range labels {
			if v := root.Get(gjson.Escape(l)); v.Exists() && v.Type == gjson.Number {
				out = append(out, classify.Prediction{ClassName: l, Probability: v.Float()})
				seen[l] = true
			}
		}
		if len(labels) > 0 {
			return out
		}
		// metadata не загружена: берём любые числовые поля, похожие на вероятность
		root.ForEach(func(k, v gjson.Result) bool {
			if v.Type == gjson.Number && !seen[k.String()] && v.Float() >= 0 && v.Float() <= 1 {
				out = append(out, classify.Prediction{ClassName: k.String(), Probability: v.Float()})
			}
			return true
		})
		return out
	}
	return nil
}

// Health проверяет, что сервер поднят и модель загружена.
func (e *Engine) Health(ctx context.Context) (*HealthResponse, error) {
	b, err := e.get(ctx, e.BaseURL+"/health")
	if err != nil {
		return nil, err
	}
	var out HealthResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func (e *Engine) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
