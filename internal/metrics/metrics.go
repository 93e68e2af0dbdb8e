package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwayhub_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathwayhub_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 路径实例指标
var (
	// InstancesStartedTotal 路径实例启动总数
	InstancesStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwayhub_instances_started_total",
			Help: "临床路径实例启动总数",
		},
		[]string{"tenant_id"},
	)

	// InstancesCompletedTotal 路径实例完成总数
	InstancesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwayhub_instances_completed_total",
			Help: "临床路径实例完成总数",
		},
		[]string{"tenant_id"},
	)

	// AnswersRecordedTotal 答案记录追加总数
	AnswersRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwayhub_answers_recorded_total",
			Help: "路径实例答案记录追加总数",
		},
		[]string{"tenant_id"},
	)
)
