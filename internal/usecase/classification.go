package usecase

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/image-classify/internal/classify"
	"github.com/example/image-classify/internal/logging"
	"github.com/example/image-classify/internal/repository"
	"github.com/example/image-classify/internal/retry"
)

// PredictionRepository defines the persistence operations needed by the use case.
type PredictionRepository interface {
	SaveLog(ctx context.Context, log *repository.PredictionLog) error
	FindByRequestIDAndOwner(ctx context.Context, requestID, ownerID string) (*repository.PredictionLog, error)
	FindDuplicatesByHash(ctx context.Context, ownerID, hash, excludeRequestID string) ([]*repository.PredictionLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Predictor is the classification entry point the use case drives.
type Predictor interface {
	Classify(ctx context.Context, img image.Image, orientation classify.Orientation) ([]classify.ClassificationResult, error)
}

// ClassificationUseCase encapsulates the classify-persist-cache flow.
type ClassificationUseCase struct {
	repo      PredictionRepository
	cache     Cache
	predictor Predictor
	logger    *zap.Logger
	retryCfg  retry.Config
}

type cachedPrediction struct {
	RequestID string                          `json:"request_id"`
	OwnerID   string                          `json:"owner_id"`
	Results   []classify.ClassificationResult `json:"results"`
	Hash      string                          `json:"sha1_hash"`
	LatencyMs int64                           `json:"latency_ms"`
	CreatedAt time.Time                       `json:"created_at"`
}

// DuplicateReport lists earlier predictions over the same image bytes.
type DuplicateReport struct {
	Request    *repository.PredictionLog
	Duplicates []*repository.PredictionLog
}

// NewClassificationUseCase constructs a new use case instance.
func NewClassificationUseCase(repo PredictionRepository, cache Cache, predictor Predictor, logger *zap.Logger) *ClassificationUseCase {
	return &ClassificationUseCase{
		repo:      repo,
		cache:     cache,
		predictor: predictor,
		logger:    logger.Named("classification_usecase"),
		retryCfg:  retry.DefaultConfig(),
	}
}

// ClassifyImage decodes the upload, runs classification, and records the
// outcome. A nil result slice with a nil error is the normal shape for an
// image the engine could not classify.
func (uc *ClassificationUseCase) ClassifyImage(ctx context.Context, ownerID string, imageBytes []byte, orientation classify.Orientation) (string, []classify.ClassificationResult, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.classify_image", requestID)

	img, format, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		wrapped := logging.NewOperationError("usecase.decode_image", requestID, err)
		opLogger.Warn("image decode failed", zap.Error(wrapped))
		return "", nil, wrapped
	}
	opLogger.Debug("decoded upload",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	cacheKey := fmt.Sprintf("prediction:%s", requestID)
	if err := uc.withCacheRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, "processing", time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return "", nil, err
	}

	start := time.Now()
	results, err := uc.predictor.Classify(ctx, img, orientation)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.classify", requestID, err)
		opLogger.Error("classification dispatch failed", zap.Error(wrapped))
		return "", nil, wrapped
	}
	latency := time.Since(start)

	hash := sha1.Sum(imageBytes)
	hashHex := hex.EncodeToString(hash[:])

	labels, err := json.Marshal(results)
	if err != nil {
		opLogger.Error("failed to serialize predictions", zap.Error(err))
		return "", nil, err
	}

	log := &repository.PredictionLog{
		RequestID:   requestID,
		OwnerID:     ownerID,
		ResultCount: len(results),
		Labels:      string(labels),
		SHA1Hash:    hashHex,
		LatencyMs:   latency.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if len(results) > 0 {
		log.TopLabel = results[0].Label
		log.TopConfidence = results[0].Confidence
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", requestID, err)
		opLogger.Error("failed to persist prediction log", zap.Error(wrapped))
		return "", nil, wrapped
	}

	cached := cachedPrediction{
		RequestID: requestID,
		OwnerID:   ownerID,
		Results:   results,
		Hash:      hashHex,
		LatencyMs: log.LatencyMs,
		CreatedAt: log.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize cached prediction", zap.Error(err))
		return "", nil, err
	}
	if err := uc.withCacheRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache prediction result", zap.Error(err))
		return "", nil, err
	}

	return requestID, results, nil
}

// GetResult retrieves a cached prediction or falls back to persistence.
func (uc *ClassificationUseCase) GetResult(ctx context.Context, ownerID, requestID string) (*repository.PredictionLog, error) {
	cacheKey := fmt.Sprintf("prediction:%s", requestID)
	if cached, err := uc.withCacheGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var payload cachedPrediction
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else if payload.RequestID != "" {
			return uc.logFromCache(requestID, ownerID, payload)
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestIDAndOwner(ctx, requestID, ownerID)
}

// GetDuplicateReport lists earlier submissions of the same image bytes.
func (uc *ClassificationUseCase) GetDuplicateReport(ctx context.Context, ownerID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndOwner(ctx, requestID, ownerID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, ownerID, log.SHA1Hash, log.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{Request: log, Duplicates: duplicates}, nil
}

func (uc *ClassificationUseCase) logFromCache(requestID, ownerID string, payload cachedPrediction) (*repository.PredictionLog, error) {
	labels, err := json.Marshal(payload.Results)
	if err != nil {
		return nil, err
	}
	log := &repository.PredictionLog{
		RequestID:   requestID,
		OwnerID:     ownerID,
		ResultCount: len(payload.Results),
		Labels:      string(labels),
		SHA1Hash:    payload.Hash,
		LatencyMs:   payload.LatencyMs,
		CreatedAt:   payload.CreatedAt,
	}
	if payload.OwnerID != "" {
		log.OwnerID = payload.OwnerID
	}
	if len(payload.Results) > 0 {
		log.TopLabel = payload.Results[0].Label
		log.TopConfidence = payload.Results[0].Confidence
	}
	return log, nil
}

func (uc *ClassificationUseCase) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	err := retry.Do(ctx, uc.retryCfg, fn)
	if err != nil {
		return logging.NewOperationError(operation, requestID, err)
	}
	return nil
}

func (uc *ClassificationUseCase) withCacheGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withCacheRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
