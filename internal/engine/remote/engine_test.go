package remote

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/image-classify/internal/classify"
	proto "github.com/example/image-classify/proto"
)

type stubClassifierClient struct {
	resp    *proto.ClassifyResponse
	err     error
	lastReq *proto.ClassifyRequest
}

func (s *stubClassifierClient) Classify(ctx context.Context, in *proto.ClassifyRequest, opts ...grpc.CallOption) (*proto.ClassifyResponse, error) {
	s.lastReq = in
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func testRequest() *classify.Request {
	return &classify.Request{
		Token:       "token-1",
		Image:       image.NewRGBA(image.Rect(0, 0, 4, 4)),
		Orientation: classify.OrientationRotate90,
		Scaling:     classify.ScaleCenterCrop,
	}
}

type completion struct {
	token        string
	observations []classify.Observation
	err          error
}

func awaitCompletion(t *testing.T, ch <-chan completion) completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("completion did not fire")
		return completion{}
	}
}

func TestSubmitMapsObservations(t *testing.T) {
	client := &stubClassifierClient{resp: &proto.ClassifyResponse{
		RequestId: "token-1",
		Observations: []*proto.Observation{
			{Label: "cat", Confidence: 0.91},
			{Label: "dog", Confidence: 0.04},
		},
	}}
	engine := NewEngine(client, zap.NewNop(), time.Second)

	ch := make(chan completion, 1)
	err := engine.Submit(testRequest(), func(token string, observations []classify.Observation, err error) {
		ch <- completion{token: token, observations: observations, err: err}
	})
	if err != nil {
		t.Fatalf("expected submit to succeed, got %v", err)
	}

	got := awaitCompletion(t, ch)
	if got.err != nil {
		t.Fatalf("expected success, got %v", got.err)
	}
	if got.token != "token-1" {
		t.Fatalf("unexpected token: %s", got.token)
	}
	if len(got.observations) != 2 || got.observations[0].Label != "cat" || got.observations[0].Confidence != 0.91 {
		t.Fatalf("unexpected observations: %+v", got.observations)
	}

	if client.lastReq.GetRequestId() != "token-1" {
		t.Fatalf("request id must carry the token, got %s", client.lastReq.GetRequestId())
	}
	if client.lastReq.GetOrientation() != int32(classify.OrientationRotate90) {
		t.Fatalf("orientation must be forwarded, got %d", client.lastReq.GetOrientation())
	}
	if client.lastReq.GetScalePolicy() != string(classify.ScaleCenterCrop) {
		t.Fatalf("scale policy must be forwarded, got %s", client.lastReq.GetScalePolicy())
	}
	if len(client.lastReq.GetImageData()) == 0 {
		t.Fatal("image bytes must be attached to the request")
	}
}

func TestSubmitReportsRPCErrorThroughCompletion(t *testing.T) {
	client := &stubClassifierClient{err: errors.New("unavailable")}
	engine := NewEngine(client, zap.NewNop(), time.Second)

	ch := make(chan completion, 1)
	err := engine.Submit(testRequest(), func(token string, observations []classify.Observation, err error) {
		ch <- completion{token: token, observations: observations, err: err}
	})
	if err != nil {
		t.Fatalf("expected submit to succeed, got %v", err)
	}

	got := awaitCompletion(t, ch)
	if got.err == nil {
		t.Fatal("expected completion error, got nil")
	}
	if got.observations != nil {
		t.Fatalf("expected nil observations on error, got %+v", got.observations)
	}
}

func TestSubmitRejectsNilImage(t *testing.T) {
	engine := NewEngine(&stubClassifierClient{}, zap.NewNop(), time.Second)

	err := engine.Submit(&classify.Request{Token: "t"}, func(string, []classify.Observation, error) {})
	if err == nil {
		t.Fatal("expected error for request without image")
	}
}
