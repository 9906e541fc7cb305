package checkout

import (
	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/pkg/logger"
	"go.uber.org/zap"
)

// Notifier receives the user-visible signals of a checkout attempt.
// Calls are made without holding the orchestrator lock.
type Notifier interface {
	Loading(on bool)
	Succeeded(order *domain.ConfirmedOrder)
	Failed(err error)
}

// LogNotifier writes the signals to the log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrNop(log)}
}

func (n *LogNotifier) Loading(on bool) {
	n.log.Debug("checkout loading", zap.Bool("loading", on))
}

func (n *LogNotifier) Succeeded(order *domain.ConfirmedOrder) {
	n.log.Info("order placed successfully", zap.String("order_id", order.OrderID))
}

func (n *LogNotifier) Failed(err error) {
	n.log.Warn(UserMessage(err), zap.Error(err))
}
