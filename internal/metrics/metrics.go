package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// 分析流程各阶段名称
const (
	StageParse      = "parse"
	StageSegment    = "segment"
	StageEmbed      = "embed"
	StageIndex      = "index"
	StageEmbedQuery = "embed_query"
	StageSearch     = "search"
	StageSynthesize = "synthesize"
)

// Metrics 分析流程的Prometheus指标
// 所有方法在接收者为nil时不做任何事
type Metrics struct {
	StageDuration  *prometheus.HistogramVec
	AnalysesTotal  *prometheus.CounterVec
	DocumentChunks prometheus.Histogram
	EmbeddingCalls prometheus.Counter
}

// NewMetrics 创建并注册指标，全局只注册一次
//
// 指标:
//   - resume_pipeline_stage_duration_seconds{stage}
//   - resume_analyses_total{status}
//   - resume_document_chunks
//   - resume_embedding_calls_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			StageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "resume_pipeline_stage_duration_seconds",
					Help:    "Duration of each analysis pipeline stage in seconds",
					Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{"stage"},
			),
			AnalysesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "resume_analyses_total",
					Help: "Total number of analyses by outcome",
				},
				[]string{"status"},
			),
			DocumentChunks: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "resume_document_chunks",
					Help:    "Number of chunks produced per analyzed document",
					Buckets: prometheus.ExponentialBuckets(1, 2, 10),
				},
			),
			EmbeddingCalls: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "resume_embedding_calls_total",
					Help: "Total number of texts sent to the embedding service",
				},
			),
		}
	})
	return globalMetrics
}

// ObserveStage 记录阶段耗时
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordAnalysis 记录一次分析结果，status为success或错误类别
func (m *Metrics) RecordAnalysis(status string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
}

// RecordChunks 记录分块数量和对应的嵌入调用次数（含查询）
func (m *Metrics) RecordChunks(chunks int) {
	if m == nil {
		return
	}
	m.DocumentChunks.Observe(float64(chunks))
	m.EmbeddingCalls.Add(float64(chunks + 1))
}
