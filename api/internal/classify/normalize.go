package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Metadata: подмножество metadata.json, которое кладёт рядом с моделью экспорт Teachable Machine.
type Metadata struct {
	ModelName    string   `json:"modelName"`
	Labels       []string `json:"labels"`
	ImageSize    int      `json:"imageSize"`
	PackageName  string   `json:"packageName,omitempty"`
	TimeStamp    string   `json:"timeStamp,omitempty"`
	UserMetadata any      `json:"userMetadata,omitempty"`
}

func ParseMetadata(b []byte) (Metadata, error) {
	var md Metadata
	if err := json.Unmarshal(b, &md); err != nil {
		return Metadata{}, fmt.Errorf("bad metadata: %w", err)
	}
	if len(md.Labels) == 0 {
		return Metadata{}, fmt.Errorf("metadata has no labels")
	}
	if md.ImageSize <= 0 {
		md.ImageSize = 224
	}
	return md, nil
}

func LoadMetadata(path string) (Metadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	return ParseMetadata(b)
}

// Zip собирает предсказания из меток и вероятностей; лишние значения отбрасываются.
func Zip(labels []string, probs []float64) []Prediction {
	n := len(labels)
	if len(probs) < n {
		n = len(probs)
	}
	out := make([]Prediction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Prediction{ClassName: labels[i], Probability: probs[i]})
	}
	return out
}

// Softmax переводит логиты в вероятности. Если вход уже похож на распределение
// (все значения в [0,1], сумма ~1), он возвращается как есть.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	sum := 0.0
	normalized := true
	for _, v := range logits {
		if v < 0 || v > 1 {
			normalized = false
		}
		sum += float64(v)
	}
	if normalized && math.Abs(sum-1) < 1e-3 {
		for i, v := range logits {
			out[i] = float64(v)
		}
		return out
	}

	// +Inf забирает всю массу, NaN получает ноль
	maxV := math.Inf(-1)
	infs := 0
	for _, v := range logits {
		f := float64(v)
		if math.IsInf(f, 1) {
			infs++
		}
		if !math.IsNaN(f) && f > maxV {
			maxV = f
		}
	}
	if infs > 0 {
		for i, v := range logits {
			if math.IsInf(float64(v), 1) {
				out[i] = 1 / float64(infs)
			}
		}
		return out
	}
	if math.IsInf(maxV, -1) {
		return out
	}
	total := 0.0
	for i, v := range logits {
		if math.IsNaN(float64(v)) {
			continue
		}
		out[i] = math.Exp(float64(v) - maxV)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// FillKnown добавляет отсутствующие известные классы с нулевой вероятностью,
// чтобы ответ LLM-движков был полным списком, как у локальной модели.
func FillKnown(preds []Prediction) []Prediction {
	seen := make(map[Label]bool, len(preds))
	for _, p := range preds {
		if l, ok := ParseLabel(p.ClassName); ok {
			seen[l] = true
		}
	}
	for _, k := range Known {
		if !seen[k] {
			preds = append(preds, Prediction{ClassName: string(k)})
		}
	}
	return preds
}
