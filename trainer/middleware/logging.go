package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedloop/pkg/fl"
	"github.com/absmach/fedloop/trainer"
)

var _ trainer.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    trainer.Service
}

func Logging(logger *slog.Logger, svc trainer.Service) trainer.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Run(ctx context.Context) (state fl.State, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Training loop failed", args...)

			return
		}
		lm.logger.Info("Training loop completed successfully", args...)
	}(time.Now())

	return lm.svc.Run(ctx)
}
