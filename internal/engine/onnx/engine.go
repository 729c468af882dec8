// Package onnx runs classification locally through an ONNX Runtime session.
package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/example/image-classify/internal/classify"
)

// Metadata is the JSON sidecar shipped next to the model file.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

var ortInitOnce sync.Once

// Engine is a classify.Engine backed by a single ONNX Runtime session. The
// session owns one pre-allocated input/output tensor pair, so runs are
// serialized behind a mutex; concurrent submissions queue on it.
type Engine struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	meta    Metadata
	logger  *zap.Logger
	mu      sync.Mutex
}

// New loads the model and its metadata sidecar and prepares the session.
func New(modelPath, metadataPath string, logger *zap.Logger) (*Engine, error) {
	var initErr error
	ortInitOnce.Do(func() {
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", initErr)
	}

	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse model metadata: %w", err)
	}
	if len(meta.Classes) == 0 {
		return nil, errors.New("model metadata lists no classes")
	}
	if meta.ImageSize <= 0 {
		return nil, errors.New("model metadata has no image size")
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Engine{
		session: session,
		input:   input,
		output:  output,
		meta:    meta,
		logger:  logger.Named("onnx_engine"),
	}, nil
}

// Submit hands the request to a worker goroutine and returns immediately.
// The completion always runs after Submit has returned.
func (e *Engine) Submit(req *classify.Request, done classify.CompletionFunc) error {
	if req == nil || req.Image == nil {
		return errors.New("request has no image")
	}
	if done == nil {
		return errors.New("completion func is nil")
	}

	go func() {
		observations, err := e.run(req)
		if err != nil {
			e.logger.Warn("inference failed",
				zap.String("token", req.Token), zap.Error(err))
		}
		done(req.Token, observations, err)
	}()
	return nil
}

func (e *Engine) run(req *classify.Request) ([]classify.Observation, error) {
	img := classify.Normalize(req.Image, req.Orientation)
	if req.Scaling == classify.ScaleCenterCrop {
		img = classify.CenterCrop(img, e.meta.ImageSize)
	}
	data := planarRGB(img)

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(data) != len(e.input.GetData()) {
		return nil, fmt.Errorf("preprocessed image has %d values, model expects %d",
			len(data), len(e.input.GetData()))
	}
	copy(e.input.GetData(), data)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return rank(e.output.GetData(), e.meta.Classes), nil
}

// Close releases the session and its tensors.
func (e *Engine) Close() {
	if e.input != nil {
		e.input.Destroy()
	}
	if e.output != nil {
		e.output.Destroy()
	}
	if e.session != nil {
		e.session.Destroy()
	}
}
