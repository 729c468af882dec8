package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/image-classify/internal/logging"
	"github.com/example/image-classify/internal/retry"
)

// PredictionLog is one persisted classification request with its outcome.
type PredictionLog struct {
	ID            uint      `gorm:"primaryKey"`
	RequestID     string    `gorm:"column:request_id;uniqueIndex;size:64"`
	OwnerID       string    `gorm:"column:owner_id;index;size:64"`
	TopLabel      string    `gorm:"column:top_label;size:128"`
	TopConfidence float32   `gorm:"column:top_confidence"`
	ResultCount   int       `gorm:"column:result_count"`
	Labels        string    `gorm:"column:labels;type:text"`
	SHA1Hash      string    `gorm:"column:sha1_hash;index;size:40"`
	LatencyMs     int64     `gorm:"column:latency_ms"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// MetricsAggregation is the raw aggregate pulled from prediction_logs.
type MetricsAggregation struct {
	TotalCount        int64
	ClassifiedCount   int64
	AverageConfidence float64
	AverageLatencyMs  float64
}

// PredictionRepository provides persistence APIs for prediction logs.
type PredictionRepository struct {
	db       *gorm.DB
	logger   *zap.Logger
	retryCfg retry.Config
}

// NewPredictionRepository creates a new repository instance.
func NewPredictionRepository(db *gorm.DB, logger *zap.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:       db,
		logger:   logger.Named("prediction_repository"),
		retryCfg: retry.DefaultConfig(),
	}
}

// AutoMigrate ensures the schema is available.
func (r *PredictionRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&PredictionLog{})
}

// SaveLog persists a prediction log entry.
func (r *PredictionRepository) SaveLog(ctx context.Context, log *PredictionLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndOwner retrieves the log matching the request and owner.
func (r *PredictionRepository) FindByRequestIDAndOwner(ctx context.Context, requestID, ownerID string) (*PredictionLog, error) {
	var log PredictionLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ? AND owner_id = ?", requestID, ownerID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash returns other logs by the same owner with the same
// image hash, excluding the request itself.
func (r *PredictionRepository) FindDuplicatesByHash(ctx context.Context, ownerID, hash, excludeRequestID string) ([]*PredictionLog, error) {
	var logs []*PredictionLog
	err := r.executeWithRetry(ctx, "repository.find_duplicates", excludeRequestID, func() error {
		return r.db.WithContext(ctx).
			Where("owner_id = ? AND sha1_hash = ? AND request_id <> ?", ownerID, hash, excludeRequestID).
			Order("created_at DESC").
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics computes summary statistics across all prediction logs.
func (r *PredictionRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&PredictionLog{}).
			Select(
				"COUNT(*) AS total_count, " +
					"COALESCE(SUM(CASE WHEN result_count > 0 THEN 1 ELSE 0 END), 0) AS classified_count, " +
					"COALESCE(AVG(top_confidence), 0) AS average_confidence, " +
					"COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *PredictionRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	err := retry.Do(ctx, r.retryCfg, fn)
	if err != nil {
		wrapped := logging.NewOperationError(operation, requestID, err)
		logging.WithOperation(r.logger, operation, requestID).Error("database operation failed", zap.Error(wrapped))
		return wrapped
	}
	return nil
}
