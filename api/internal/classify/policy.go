package classify

import "math"

// DefaultThreshold: минимальная уверенность, при которой верхнему классу модели верим.
const DefaultThreshold = 0.90

// Dispatch выбирает класс с максимальной вероятностью (при равенстве: первый встреченный)
// и применяет порог DefaultThreshold.
func Dispatch(preds []Prediction) Result {
	return DispatchWithThreshold(preds, DefaultThreshold)
}

// DispatchWithThreshold: то же, что Dispatch, но с явным порогом.
// Ниже порога метка принудительно General, независимо от имени верхнего класса.
func DispatchWithThreshold(preds []Prediction, threshold float64) Result {
	top, ok := Highest(preds)
	if !ok {
		return Result{Label: General}
	}

	// NaN не проходит порог: сравнение с ним всегда ложно
	if !(top.Probability >= threshold) {
		return Result{
			Label:      General,
			RawLabel:   top.ClassName,
			Confidence: top.Probability,
		}
	}

	label, _ := ParseLabel(top.ClassName)
	return Result{
		Label:      label,
		RawLabel:   top.ClassName,
		Confidence: top.Probability,
		Accepted:   true,
	}
}

// Highest возвращает предсказание с максимальной вероятностью; ok=false для пустого списка.
// Вероятности приводятся к [0,1], NaN и бесконечности считаются нулём.
func Highest(preds []Prediction) (Prediction, bool) {
	if len(preds) == 0 {
		return Prediction{}, false
	}
	best := preds[0]
	best.Probability = clampProbability(best.Probability)
	for _, p := range preds[1:] {
		p.Probability = clampProbability(p.Probability)
		if p.Probability > best.Probability {
			best = p
		}
	}
	return best, true
}

func clampProbability(v float64) float64 {
	switch {
	case math.IsNaN(v), math.IsInf(v, 0), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
