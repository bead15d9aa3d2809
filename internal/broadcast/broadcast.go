// Package broadcast fans a message out to every registered user. Delivery is
// best effort: one recipient failing never aborts the batch.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gateprep/coursebot/core/logger"
	"github.com/gateprep/coursebot/internal/gateway"
	"github.com/gateprep/coursebot/internal/users"
)

// Result counts the outcome of one broadcast run. Attempted is always the sum
// of Sent and Failed.
type Result struct {
	Attempted int
	Sent      int
	Failed    int
}

// Service iterates the user registry and sends one message per user.
type Service struct {
	registry users.Registry
	gw       gateway.Gateway
}

// New builds a broadcast service.
func New(registry users.Registry, gw gateway.Gateway) *Service {
	return &Service{registry: registry, gw: gw}
}

// Send delivers text to every registered user. It stops early only when ctx
// is cancelled; per-recipient failures are counted and skipped.
func (s *Service) Send(ctx context.Context, text string) (Result, error) {
	var res Result

	list, err := s.registry.List(ctx)
	if err != nil {
		return res, fmt.Errorf("broadcast: list users: %w", err)
	}

	for _, u := range list {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++
		if err := s.gw.SendText(ctx, u.ID, text); err != nil {
			res.Failed++
			logger.Warn(ctx, "broadcast", "send.fail",
				slog.String("status", "fail"),
				slog.Int64("dest_user_id", u.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		res.Sent++
	}

	logger.Info(ctx, "broadcast", "summary",
		slog.String("status", "ok"),
		slog.Int("attempted", res.Attempted),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}
