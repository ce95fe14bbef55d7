package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"waste-bot/api/internal/util"
)

// VisionPrompt: системная инструкция для LLM-движков; метки из закрытого набора.
func VisionPrompt() string {
	names := make([]string, 0, len(Known))
	for _, l := range Known {
		names = append(names, `"`+string(l)+`"`)
	}
	return `You are the vision module of a waste-sorting kiosk. Look at the PHOTO of a single waste item
and estimate how likely it belongs to each category: ` + strings.Join(names, ", ") + `.
Probabilities must be in [0,1] and sum to 1. If the item is dirty, mixed or unrecognisable,
spread the probability instead of guessing.
Return STRICT JSON only:
{"predictions":[{"className": string, "probability": number}, ...]}`
}

// VisionUserPrompt: короткая пользовательская часть запроса.
const VisionUserPrompt = "Classify this item. JSON only."

// ParseLLMResponse разбирает JSON модели (возможно в ```-обёртке) и дополняет
// список недостающими классами.
func ParseLLMResponse(txt string) ([]Prediction, error) {
	var out struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.Unmarshal([]byte(util.StripCodeFences(txt)), &out); err != nil {
		return nil, fmt.Errorf("bad JSON: %w", err)
	}
	if len(out.Predictions) == 0 {
		return nil, fmt.Errorf("no predictions")
	}
	return FillKnown(out.Predictions), nil
}
