package classify

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/image-classify/internal/logging"
)

// Setup-phase failures. They are returned synchronously from Predict; the
// completion callback is never invoked for them.
var (
	ErrNoPixelData        = errors.New("image has no pixel data")
	ErrEngineUnavailable  = errors.New("classifier engine unavailable")
	ErrNilCallback        = errors.New("completion callback is nil")
	ErrInvalidOrientation = errors.New("invalid orientation value")
)

// Callback receives the ranked predictions for one Predict call, or nil when
// classification failed after dispatch. It is invoked exactly once, on an
// engine completion goroutine.
type Callback func(results []ClassificationResult)

// Predictor bridges callers to an asynchronous classification engine. The
// engine is constructed lazily on first use and shared by all in-flight
// requests; a construction failure is terminal for the Predictor.
type Predictor struct {
	newEngine func() (Engine, error)
	logger    *zap.Logger

	initOnce sync.Once
	engine   Engine
	initErr  error

	mu      sync.Mutex
	pending map[string]Callback
}

// NewPredictor builds a Predictor around an engine factory. The factory runs
// at most once, on the first Predict call.
func NewPredictor(newEngine func() (Engine, error), logger *zap.Logger) *Predictor {
	return &Predictor{
		newEngine: newEngine,
		logger:    logger.Named("predictor"),
		pending:   make(map[string]Callback),
	}
}

// Predict dispatches img to the engine and arranges for onComplete to run
// exactly once with the ranked results, or with nil when classification
// fails after dispatch. Setup and dispatch failures are returned as an error
// instead; onComplete is never invoked for them, and never invoked before
// Predict returns.
func (p *Predictor) Predict(img image.Image, orientation Orientation, onComplete Callback) error {
	if onComplete == nil {
		return logging.NewOperationError("classify.predict", "", ErrNilCallback)
	}
	if img == nil || img.Bounds().Dx() <= 0 || img.Bounds().Dy() <= 0 {
		return logging.NewOperationError("classify.predict", "", ErrNoPixelData)
	}
	if !orientation.Valid() {
		return logging.NewOperationError("classify.predict", "", ErrInvalidOrientation)
	}

	engine, err := p.sharedEngine()
	if err != nil {
		return logging.NewOperationError("classify.predict", "", err)
	}

	token := uuid.NewString()
	req := &Request{
		Token:       token,
		Image:       img,
		Orientation: orientation,
		Scaling:     ScaleCenterCrop,
	}

	p.mu.Lock()
	p.pending[token] = onComplete
	p.mu.Unlock()

	if err := engine.Submit(req, p.complete); err != nil {
		p.mu.Lock()
		delete(p.pending, token)
		p.mu.Unlock()
		wrapped := logging.NewOperationError("classify.dispatch", token, err)
		p.logger.Error("engine rejected request", zap.Error(wrapped))
		return wrapped
	}
	return nil
}

// Classify is the awaitable form of Predict. It returns the dispatch-time
// error directly, otherwise blocks until the completion fires and returns
// the value the callback would have received.
func (p *Predictor) Classify(ctx context.Context, img image.Image, orientation Orientation) ([]ClassificationResult, error) {
	ch := make(chan []ClassificationResult, 1)
	if err := p.Predict(img, orientation, func(results []ClassificationResult) {
		ch <- results
	}); err != nil {
		return nil, err
	}

	select {
	case results := <-ch:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending reports the number of requests currently awaiting completion.
func (p *Predictor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Predictor) sharedEngine() (Engine, error) {
	p.initOnce.Do(func() {
		p.engine, p.initErr = p.newEngine()
		if p.initErr != nil {
			p.logger.Error("classifier construction failed", zap.Error(p.initErr))
		} else if p.engine == nil {
			p.initErr = ErrEngineUnavailable
		}
	})
	if p.initErr != nil {
		return nil, p.initErr
	}
	return p.engine, nil
}

// complete is the engine-facing completion handler. It consumes the pending
// entry for the token and delivers the mapped results through a deferred
// call, so the callback fires exactly once on every exit path.
func (p *Predictor) complete(token string, observations []Observation, err error) {
	p.mu.Lock()
	onComplete, ok := p.pending[token]
	if ok {
		delete(p.pending, token)
	}
	p.mu.Unlock()

	opLogger := logging.WithOperation(p.logger, "classify.complete", token)
	if !ok {
		// Completion for a request we never dispatched or already resolved.
		// There is no caller left to notify.
		opLogger.Warn("completion for unknown request token")
		return
	}

	var results []ClassificationResult
	defer func() {
		onComplete(results)
	}()

	if err != nil {
		opLogger.Warn("engine reported error", zap.Error(err))
		return
	}
	if len(observations) == 0 {
		opLogger.Warn("engine returned no observations")
		return
	}
	for _, obs := range observations {
		if obs.Label == "" {
			opLogger.Warn("engine returned malformed observations")
			return
		}
	}

	results = make([]ClassificationResult, len(observations))
	for i, obs := range observations {
		results[i] = ClassificationResult{Label: obs.Label, Confidence: obs.Confidence}
	}
}
