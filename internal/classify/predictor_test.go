package classify

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/image-classify/internal/logging"
)

type stubEngine struct {
	mu        sync.Mutex
	requests  []*Request
	submitErr error
	// complete, when set, runs on its own goroutine for every accepted
	// request, mirroring a real engine's completion context.
	complete func(req *Request, done CompletionFunc)
}

func (s *stubEngine) Submit(req *Request, done CompletionFunc) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.complete != nil {
		go s.complete(req, done)
	}
	return nil
}

func staticEngine(e Engine) func() (Engine, error) {
	return func() (Engine, error) { return e, nil }
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func waitForResults(t *testing.T, ch <-chan []ClassificationResult) []ClassificationResult {
	t.Helper()
	select {
	case results := <-ch:
		return results
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not fire")
		return nil
	}
}

func TestPredictDeliversRankedResults(t *testing.T) {
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			done(req.Token, []Observation{
				{Label: "cat", Confidence: 0.91},
				{Label: "dog", Confidence: 0.04},
			}, nil)
		},
	}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	ch := make(chan []ClassificationResult, 1)
	if err := p.Predict(testImage(), OrientationUp, func(results []ClassificationResult) {
		ch <- results
	}); err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}

	results := waitForResults(t, ch)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Label != "cat" || results[0].Confidence != 0.91 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Label != "dog" || results[1].Confidence != 0.04 {
		t.Fatalf("unexpected second result: %+v", results[1])
	}
	if p.Pending() != 0 {
		t.Fatalf("expected no pending requests, got %d", p.Pending())
	}
}

func TestPredictDeliversNilOnEngineError(t *testing.T) {
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			done(req.Token, nil, errors.New("processing failed"))
		},
	}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	ch := make(chan []ClassificationResult, 1)
	if err := p.Predict(testImage(), OrientationUp, func(results []ClassificationResult) {
		ch <- results
	}); err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}

	if results := waitForResults(t, ch); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}

func TestPredictDeliversNilOnEmptyObservations(t *testing.T) {
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			done(req.Token, []Observation{}, nil)
		},
	}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	ch := make(chan []ClassificationResult, 1)
	if err := p.Predict(testImage(), OrientationUp, func(results []ClassificationResult) {
		ch <- results
	}); err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}

	if results := waitForResults(t, ch); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}

func TestPredictDeliversNilOnMalformedObservations(t *testing.T) {
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			done(req.Token, []Observation{{Label: "", Confidence: 0.5}}, nil)
		},
	}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	ch := make(chan []ClassificationResult, 1)
	if err := p.Predict(testImage(), OrientationUp, func(results []ClassificationResult) {
		ch <- results
	}); err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}

	if results := waitForResults(t, ch); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}

func TestPredictRejectsNilImage(t *testing.T) {
	p := NewPredictor(staticEngine(&stubEngine{}), zap.NewNop())

	var called atomic.Bool
	err := p.Predict(nil, OrientationUp, func([]ClassificationResult) {
		called.Store(true)
	})
	if !errors.Is(err, ErrNoPixelData) {
		t.Fatalf("expected ErrNoPixelData, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if called.Load() {
		t.Fatal("callback must not fire for a setup failure")
	}
}

func TestPredictRejectsInvalidOrientation(t *testing.T) {
	p := NewPredictor(staticEngine(&stubEngine{}), zap.NewNop())

	err := p.Predict(testImage(), Orientation(9), func([]ClassificationResult) {})
	if !errors.Is(err, ErrInvalidOrientation) {
		t.Fatalf("expected ErrInvalidOrientation, got %v", err)
	}
}

func TestPredictReturnsDispatchError(t *testing.T) {
	engine := &stubEngine{submitErr: errors.New("queue full")}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	var called atomic.Bool
	err := p.Predict(testImage(), OrientationUp, func([]ClassificationResult) {
		called.Store(true)
	})
	if err == nil {
		t.Fatal("expected dispatch error, got nil")
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "classify.dispatch" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}

	time.Sleep(20 * time.Millisecond)
	if called.Load() {
		t.Fatal("callback must not fire for a dispatch failure")
	}
	if p.Pending() != 0 {
		t.Fatalf("dispatch failure must clear the pending entry, got %d", p.Pending())
	}
}

func TestEngineConstructionFailureIsTerminal(t *testing.T) {
	var factoryCalls atomic.Int32
	p := NewPredictor(func() (Engine, error) {
		factoryCalls.Add(1)
		return nil, errors.New("model load failed")
	}, zap.NewNop())

	for i := 0; i < 3; i++ {
		if err := p.Predict(testImage(), OrientationUp, func([]ClassificationResult) {}); err == nil {
			t.Fatal("expected construction error, got nil")
		}
	}
	if got := factoryCalls.Load(); got != 1 {
		t.Fatalf("expected a single factory call, got %d", got)
	}
}

func TestEngineConstructedOnceAcrossConcurrentPredicts(t *testing.T) {
	var factoryCalls atomic.Int32
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			done(req.Token, []Observation{{Label: "ok", Confidence: 1}}, nil)
		},
	}
	p := NewPredictor(func() (Engine, error) {
		factoryCalls.Add(1)
		return engine, nil
	}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := make(chan []ClassificationResult, 1)
			if err := p.Predict(testImage(), OrientationUp, func(results []ClassificationResult) {
				ch <- results
			}); err != nil {
				t.Errorf("dispatch failed: %v", err)
				return
			}
			<-ch
		}()
	}
	wg.Wait()

	if got := factoryCalls.Load(); got != 1 {
		t.Fatalf("expected a single factory call, got %d", got)
	}
}

func TestUnknownTokenCompletionIsDropped(t *testing.T) {
	engine := &stubEngine{}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	var called atomic.Bool
	if err := p.Predict(testImage(), OrientationUp, func([]ClassificationResult) {
		called.Store(true)
	}); err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}

	p.complete("no-such-token", []Observation{{Label: "cat", Confidence: 1}}, nil)

	time.Sleep(20 * time.Millisecond)
	if called.Load() {
		t.Fatal("unrelated pending callback must not fire")
	}
	if p.Pending() != 1 {
		t.Fatalf("pending entry must survive an unknown completion, got %d", p.Pending())
	}
}

func TestCallbackFiresExactlyOncePerPredict(t *testing.T) {
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			// Duplicate completion for the same token; the second must be
			// dropped as a protocol violation.
			done(req.Token, []Observation{{Label: "cat", Confidence: 1}}, nil)
			done(req.Token, []Observation{{Label: "dog", Confidence: 1}}, nil)
		},
	}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	var calls atomic.Int32
	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		ch := make(chan []ClassificationResult, 2)
		go func() {
			defer wg.Done()
			if err := p.Predict(testImage(), OrientationUp, func(results []ClassificationResult) {
				calls.Add(1)
				ch <- results
			}); err != nil {
				t.Errorf("dispatch failed: %v", err)
				return
			}
			<-ch
		}()
	}
	wg.Wait()

	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != n {
		t.Fatalf("expected %d callback invocations, got %d", n, got)
	}
}

func TestClassifyMatchesCallbackVariant(t *testing.T) {
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			done(req.Token, []Observation{
				{Label: "cat", Confidence: 0.91},
				{Label: "dog", Confidence: 0.04},
			}, nil)
		},
	}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	results, err := p.Classify(context.Background(), testImage(), OrientationUp)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(results) != 2 || results[0].Label != "cat" || results[1].Label != "dog" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestClassifyReturnsDispatchError(t *testing.T) {
	engine := &stubEngine{submitErr: errors.New("queue full")}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	if _, err := p.Classify(context.Background(), testImage(), OrientationUp); err == nil {
		t.Fatal("expected dispatch error, got nil")
	}
}

func TestClassifyHonorsContextCancellation(t *testing.T) {
	// Engine that never completes.
	p := NewPredictor(staticEngine(&stubEngine{}), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Classify(ctx, testImage(), OrientationUp); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRequestCarriesCenterCropPolicy(t *testing.T) {
	engine := &stubEngine{
		complete: func(req *Request, done CompletionFunc) {
			done(req.Token, []Observation{{Label: "ok", Confidence: 1}}, nil)
		},
	}
	p := NewPredictor(staticEngine(engine), zap.NewNop())

	ch := make(chan []ClassificationResult, 1)
	if err := p.Predict(testImage(), OrientationRotate90, func(results []ClassificationResult) {
		ch <- results
	}); err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}
	waitForResults(t, ch)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.requests) != 1 {
		t.Fatalf("expected 1 dispatched request, got %d", len(engine.requests))
	}
	req := engine.requests[0]
	if req.Scaling != ScaleCenterCrop {
		t.Fatalf("expected center-crop policy, got %q", req.Scaling)
	}
	if req.Orientation != OrientationRotate90 {
		t.Fatalf("orientation must pass through untouched, got %d", req.Orientation)
	}
	if req.Token == "" {
		t.Fatal("request must carry a token")
	}
}
