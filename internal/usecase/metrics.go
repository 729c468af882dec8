package usecase

import "context"

// MetricsSummary represents aggregated classification insights.
type MetricsSummary struct {
	TotalRequests      int64   `json:"total_requests"`
	ClassifiedRequests int64   `json:"classified_requests"`
	ClassifiedRate     float64 `json:"classified_rate"`
	AverageConfidence  float64 `json:"average_confidence"`
	AverageLatencyMs   float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates metrics from persisted prediction logs.
func (uc *ClassificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:      aggregation.TotalCount,
		ClassifiedRequests: aggregation.ClassifiedCount,
		AverageConfidence:  aggregation.AverageConfidence,
		AverageLatencyMs:   aggregation.AverageLatencyMs,
	}
	if aggregation.TotalCount > 0 {
		summary.ClassifiedRate = float64(aggregation.ClassifiedCount) / float64(aggregation.TotalCount)
	}
	return summary, nil
}
