// Package onnx: локальный инференс экспортированной модели без внешнего сервиса.
package onnx

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/owulveryck/onnx-go"
	"github.com/owulveryck/onnx-go/backend/x/gorgonnx"
	"gorgonia.org/tensor"

	"waste-bot/api/internal/capture"
	"waste-bot/api/internal/classify"
)

// Layout: порядок осей входного тензора.
type Layout string

const (
	NHWC Layout = "NHWC" // Keras/Teachable Machine
	NCHW Layout = "NCHW" // PyTorch
)

type Engine struct {
	path   string
	size   int
	layout Layout
	labels []string

	mu      sync.Mutex // gorgonnx граф не потокобезопасен
	backend *gorgonnx.Graph
	model   *onnx.Model
}

// Load читает model.onnx и metadata.json из каталога модели.
func Load(dir string, layout Layout) (*Engine, error) {
	md, err := classify.LoadMetadata(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "model.onnx")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	backend := gorgonnx.NewGraph()
	model := onnx.NewModel(backend)
	if err := model.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if layout == "" {
		layout = NHWC
	}
	return &Engine{
		path:    path,
		size:    md.ImageSize,
		layout:  layout,
		labels:  md.Labels,
		backend: backend,
		model:   model,
	}, nil
}

func (e *Engine) Name() string     { return "onnx" }
func (e *Engine) GetModel() string { return filepath.Base(filepath.Dir(e.path)) }
func (e *Engine) ClassCount() int  { return len(e.labels) }

func (e *Engine) Predict(ctx context.Context, img []byte, _ string) ([]classify.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	decoded, err := capture.Decode(img)
	if err != nil {
		return nil, err
	}
	in := ToTensor(capture.Resize(capture.CenterSquare(decoded), e.size, e.size), e.layout)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.model.SetInput(0, in); err != nil {
		return nil, fmt.Errorf("set input: %w", err)
	}
	if err := e.backend.Run(); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	outs, err := e.model.GetOutputTensors()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("model produced no output")
	}
	logits, ok := outs[0].Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outs[0].Data())
	}
	return classify.Zip(e.labels, classify.Softmax(logits)), nil
}

// ToTensor переводит изображение в float32 тензор [1,...] с нормализацией в [-1,1],
// как при обучении в Teachable Machine.
func ToTensor(img image.Image, layout Layout) tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*w*h)
	plane := w * h

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px := [3]float32{
				float32(r>>8)/127.5 - 1,
				float32(g>>8)/127.5 - 1,
				float32(bl>>8)/127.5 - 1,
			}
			for c := 0; c < 3; c++ {
				if layout == NCHW {
					data[c*plane+y*w+x] = px[c]
				} else {
					data[(y*w+x)*3+c] = px[c]
				}
			}
		}
	}

	shape := tensor.Shape{1, h, w, 3}
	if layout == NCHW {
		shape = tensor.Shape{1, 3, h, w}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}
