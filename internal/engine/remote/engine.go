// Package remote submits classification requests to an inference service
// over gRPC.
package remote

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/example/image-classify/internal/classify"
	"github.com/example/image-classify/internal/logging"
	proto "github.com/example/image-classify/proto"
)

const defaultRPCTimeout = 30 * time.Second

// Dial connects to a remote classifier service and returns a ready engine.
// The caller owns the connection.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*Engine, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("remote.dial_classifier", "", err)
		logger.Error("failed to dial classifier service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}

	engine := &Engine{
		client:  proto.NewImageClassifierClient(conn),
		logger:  logger.Named("remote_engine"),
		timeout: defaultRPCTimeout,
	}
	return engine, conn, nil
}

// Engine is a classify.Engine that forwards requests to a gRPC classifier.
type Engine struct {
	client  proto.ImageClassifierClient
	logger  *zap.Logger
	timeout time.Duration
}

// NewEngine wraps an existing client, mainly for tests.
func NewEngine(client proto.ImageClassifierClient, logger *zap.Logger, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultRPCTimeout
	}
	return &Engine{client: client, logger: logger.Named("remote_engine"), timeout: timeout}
}

// Submit encodes the image and issues the RPC from its own goroutine. The
// encode happens before handoff so an unencodable image is a dispatch error,
// not a completion.
func (e *Engine) Submit(req *classify.Request, done classify.CompletionFunc) error {
	if req == nil || req.Image == nil {
		return errors.New("request has no image")
	}
	if done == nil {
		return errors.New("completion func is nil")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, req.Image); err != nil {
		return logging.NewOperationError("remote.encode_image", req.Token, err)
	}

	rpcReq := &proto.ClassifyRequest{
		RequestId:   req.Token,
		ImageData:   buf.Bytes(),
		Orientation: int32(req.Orientation),
		ScalePolicy: string(req.Scaling),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		resp, err := e.client.Classify(ctx, rpcReq)
		if err != nil {
			wrapped := logging.NewOperationError("remote.classify", req.Token, err)
			e.logger.Warn("classifier call failed", zap.Error(wrapped))
			done(req.Token, nil, wrapped)
			return
		}

		observations := make([]classify.Observation, 0, len(resp.GetObservations()))
		for _, obs := range resp.GetObservations() {
			observations = append(observations, classify.Observation{
				Label:      obs.GetLabel(),
				Confidence: obs.GetConfidence(),
			})
		}
		done(req.Token, observations, nil)
	}()
	return nil
}
