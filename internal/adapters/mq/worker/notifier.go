package worker

import (
	"context"

	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/logger"
)

// LogNotifier writes every match notice as a structured log line.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier returns a notifier logging through l, or the global logger when l is nil.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.Get().Named("notifier")
	}
	return &LogNotifier{logger: l}
}

// Notify logs n.
func (n *LogNotifier) Notify(ctx context.Context, notice model.MatchNotice) error { //nolint:gocritic // hugeParam
	n.logger.Info(ctx, "clink matched",
		logger.String("notice_id", notice.ID),
		logger.String("day", notice.Day),
		logger.Int64("initiator", int64(notice.Initiator.ParticipantID)),
		logger.String("initiator_handle", notice.Initiator.DisplayHandle),
		logger.Int64("initiator_total", notice.InitiatorTotal),
		logger.Int64("partner", int64(notice.Partner.ParticipantID)),
		logger.String("partner_handle", notice.Partner.DisplayHandle),
		logger.Int64("partner_total", notice.PartnerTotal),
	)
	return nil
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n model.MatchNotice) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n model.MatchNotice) error { //nolint:gocritic // hugeParam
	return f(ctx, n)
}
