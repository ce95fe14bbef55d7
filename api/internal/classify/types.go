package classify

import "strings"

// Label: идентификатор категории отходов.
type Label string

const (
	Plastic   Label = "plastic"
	Vinyl     Label = "vinyl"
	Paper     Label = "paper"
	Styrofoam Label = "styrofoam"
	Can       Label = "can"
	Glass     Label = "glass"

	// General: "general/mixed waste", куда уходит всё неуверенное.
	General Label = "general"
)

// Known: закрытый набор категорий в порядке, в котором их отдаёт модель.
var Known = []Label{Plastic, Vinyl, Paper, Styrofoam, Can, Glass}

// aliases: имена классов, которые встречаются в экспортированных моделях.
var aliases = map[string]Label{
	"plastic":   Plastic,
	"플라스틱":      Plastic,
	"vinyl":     Vinyl,
	"film":      Vinyl,
	"vinyl/film": Vinyl,
	"비닐":        Vinyl,
	"paper":     Paper,
	"종이":        Paper,
	"styrofoam": Styrofoam,
	"스티로폼":      Styrofoam,
	"can":       Can,
	"캔":         Can,
	"glass":     Glass,
	"유리병":       Glass,
	"general":   General,
	"혼합/일반 쓰레기": General,
}

// ParseLabel нормализует имя класса модели. ok=false, если имя вне закрытого набора;
// в этом случае возвращается исходное имя как есть.
func ParseLabel(className string) (Label, bool) {
	s := strings.ToLower(strings.TrimSpace(className))
	if l, ok := aliases[s]; ok {
		return l, true
	}
	return Label(strings.TrimSpace(className)), false
}

func (l Label) IsKnown() bool {
	for _, k := range Known {
		if k == l {
			return true
		}
	}
	return false
}

func (l Label) String() string { return string(l) }

// Prediction: одна строка выхода модели.
type Prediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Result: итог классификации одного кадра.
type Result struct {
	Label      Label   `json:"label"`
	RawLabel   string  `json:"raw_label"`
	Confidence float64 `json:"confidence"`
	Accepted   bool    `json:"accepted"`
}
