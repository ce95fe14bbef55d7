package classify

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	t.Run("confident paper is accepted", func(t *testing.T) {
		res := Dispatch([]Prediction{
			{ClassName: "paper", Probability: 0.95},
			{ClassName: "can", Probability: 0.03},
			{ClassName: "plastic", Probability: 0.02},
		})

		assert.Equal(t, Paper, res.Label)
		assert.Equal(t, "paper", res.RawLabel)
		assert.Equal(t, 0.95, res.Confidence)
		assert.True(t, res.Accepted)
	})

	t.Run("low confidence falls back to general", func(t *testing.T) {
		res := Dispatch([]Prediction{
			{ClassName: "paper", Probability: 0.5},
			{ClassName: "can", Probability: 0.3},
			{ClassName: "plastic", Probability: 0.2},
		})

		assert.Equal(t, General, res.Label)
		assert.Equal(t, "paper", res.RawLabel)
		assert.False(t, res.Accepted)
	})

	t.Run("exactly at threshold is accepted", func(t *testing.T) {
		res := Dispatch([]Prediction{
			{ClassName: "can", Probability: 0.90},
			{ClassName: "glass", Probability: 0.10},
		})

		assert.Equal(t, Can, res.Label)
		assert.True(t, res.Accepted)
	})

	t.Run("korean class names are normalised", func(t *testing.T) {
		res := Dispatch([]Prediction{
			{ClassName: "유리병", Probability: 0.97},
			{ClassName: "캔", Probability: 0.03},
		})

		assert.Equal(t, Glass, res.Label)
		assert.Equal(t, "유리병", res.RawLabel)
	})

	t.Run("unknown confident class keeps raw name", func(t *testing.T) {
		res := Dispatch([]Prediction{{ClassName: "battery", Probability: 0.99}})

		assert.Equal(t, Label("battery"), res.Label)
		assert.True(t, res.Accepted)
		assert.False(t, res.Label.IsKnown())
	})

	t.Run("empty predictions give general", func(t *testing.T) {
		res := Dispatch(nil)

		assert.Equal(t, General, res.Label)
		assert.False(t, res.Accepted)
		assert.Zero(t, res.Confidence)
	})

	t.Run("NaN probability is never accepted", func(t *testing.T) {
		res := Dispatch([]Prediction{
			{ClassName: "paper", Probability: math.NaN()},
			{ClassName: "can", Probability: 0.1},
		})

		assert.Equal(t, General, res.Label)
		assert.Equal(t, "can", res.RawLabel)
		assert.False(t, res.Accepted)
		assert.Equal(t, 0.1, res.Confidence)
	})

	t.Run("out of range probabilities are clamped", func(t *testing.T) {
		res := Dispatch([]Prediction{
			{ClassName: "glass", Probability: 12},
			{ClassName: "can", Probability: -3},
		})

		assert.Equal(t, Glass, res.Label)
		assert.Equal(t, 1.0, res.Confidence)

		res = Dispatch([]Prediction{{ClassName: "can", Probability: math.Inf(1)}})
		assert.Equal(t, General, res.Label)
		assert.False(t, res.Accepted)
		assert.Zero(t, res.Confidence)
	})

	t.Run("custom threshold", func(t *testing.T) {
		preds := []Prediction{{ClassName: "vinyl", Probability: 0.7}}

		assert.Equal(t, Vinyl, DispatchWithThreshold(preds, 0.6).Label)
		assert.Equal(t, General, DispatchWithThreshold(preds, 0.8).Label)
	})
}

func TestHighest(t *testing.T) {
	t.Run("selects maximum", func(t *testing.T) {
		preds := []Prediction{
			{ClassName: "a", Probability: 0.1},
			{ClassName: "b", Probability: 0.6},
			{ClassName: "c", Probability: 0.3},
		}

		top, ok := Highest(preds)

		require.True(t, ok)
		assert.Equal(t, "b", top.ClassName)
		for _, p := range preds {
			assert.GreaterOrEqual(t, top.Probability, p.Probability)
		}
	})

	t.Run("ties keep the first encountered", func(t *testing.T) {
		top, ok := Highest([]Prediction{
			{ClassName: "can", Probability: 0.5},
			{ClassName: "glass", Probability: 0.5},
		})

		require.True(t, ok)
		assert.Equal(t, "can", top.ClassName)
	})
}

func TestSoftmax(t *testing.T) {
	t.Run("passes through distributions", func(t *testing.T) {
		out := Softmax([]float32{0.25, 0.75})
		assert.InDelta(t, 0.25, out[0], 1e-6)
		assert.InDelta(t, 0.75, out[1], 1e-6)
	})

	t.Run("normalises logits", func(t *testing.T) {
		out := Softmax([]float32{2, 1, -1})
		sum := 0.0
		for _, v := range out {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.Greater(t, out[0], out[1])
		assert.Greater(t, out[1], out[2])
	})

	t.Run("infinite logit takes all mass", func(t *testing.T) {
		inf := float32(math.Inf(1))
		out := Softmax([]float32{inf, 0, 0})
		assert.Equal(t, []float64{1, 0, 0}, out)

		res := Dispatch(Zip([]string{"paper", "can", "glass"}, out))
		assert.Equal(t, Paper, res.Label)
		assert.Equal(t, 1.0, res.Confidence)
	})

	t.Run("NaN logits get zero", func(t *testing.T) {
		out := Softmax([]float32{float32(math.NaN()), 2, 1})
		assert.Zero(t, out[0])
		assert.InDelta(t, 1.0, out[1]+out[2], 1e-9)

		res := Dispatch(Zip([]string{"paper", "can", "glass"}, Softmax([]float32{float32(math.NaN()), float32(math.NaN())})))
		assert.False(t, res.Accepted)
	})
}

func TestFillKnown(t *testing.T) {
	out := FillKnown([]Prediction{{ClassName: "종이", Probability: 0.8}})

	assert.Len(t, out, len(Known))
	assert.Equal(t, "종이", out[0].ClassName)
}

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata([]byte(`{"modelName":"tm-my-image-model","labels":["플라스틱","비닐","종이"]}`))

	require.NoError(t, err)
	assert.Equal(t, 224, md.ImageSize)
	assert.Len(t, md.Labels, 3)

	_, err = ParseMetadata([]byte(`{"labels":[]}`))
	assert.Error(t, err)
}

type stubEngine struct{ name string }

func (s stubEngine) Name() string     { return s.name }
func (s stubEngine) GetModel() string { return "stub" }
func (s stubEngine) ClassCount() int  { return 0 }
func (s stubEngine) Predict(context.Context, []byte, string) ([]Prediction, error) {
	return nil, nil
}

func TestEnginesAndManager(t *testing.T) {
	engines := Engines{"gpt": stubEngine{"gpt"}, "tmserver": stubEngine{"tmserver"}}

	e, err := engines.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "gpt", e.Name())

	e, err = engines.Get("TM")
	require.NoError(t, err)
	assert.Equal(t, "tmserver", e.Name())

	_, err = engines.Get("deepseek")
	assert.ErrorIs(t, err, ErrUnknownEngine)
	assert.Equal(t, []string{"gpt", "tmserver"}, engines.Names())

	m := NewManager(engines["tmserver"])
	assert.Equal(t, "tmserver", m.Get(42).Name())
	m.Set(42, engines["gpt"])
	assert.Equal(t, "gpt", m.Get(42).Name())
	assert.Equal(t, "tmserver", m.Get(7).Name())
}

func TestParseLLMResponse(t *testing.T) {
	preds, err := ParseLLMResponse("```json\n{\"predictions\":[{\"className\":\"can\",\"probability\":0.92},{\"className\":\"glass\",\"probability\":0.08}]}\n```")

	require.NoError(t, err)
	assert.Len(t, preds, len(Known))
	assert.Equal(t, Can, Dispatch(preds).Label)

	_, err = ParseLLMResponse("not json")
	assert.Error(t, err)

	_, err = ParseLLMResponse(`{"predictions":[]}`)
	assert.Error(t, err)
}

func TestVisionPromptListsLabels(t *testing.T) {
	p := VisionPrompt()
	for _, l := range Known {
		assert.Contains(t, p, `"`+string(l)+`"`)
	}
}
