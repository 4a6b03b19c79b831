package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedloop/pkg/fl"
	"github.com/absmach/fedloop/trainer"
	"github.com/go-kit/kit/metrics"
)

var _ trainer.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     trainer.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc trainer.Service) trainer.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Run(ctx context.Context) (fl.State, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "run").Add(1)
		mm.latency.With("method", "run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Run(ctx)
}
