package lifecycle

import (
	"signalbot/internal/gateway/exchange"
	"signalbot/internal/logger"
)

// LogObserver writes lifecycle events to the open, close and error channels.
type LogObserver struct{}

func (LogObserver) Observe(ev Event) {
	res := ev.Result
	if res.Err != nil {
		logger.Failure(string(res.Err.Category), "%s %s: %v", ev.Lane, res.Action, res.Err)
	}
	switch res.Action {
	case ActionOpened:
		attrs := []any{"lane", ev.Lane}
		if res.Bracket != nil {
			attrs = append(attrs,
				"side", string(res.Bracket.Side),
				"quantity", res.Bracket.Quantity.String(),
				"take_profit", res.Bracket.TakeProfitString(),
				"stop_loss", res.Bracket.StopLossString())
		}
		logger.Channelf(logger.ChannelOpen, "position opened", attrs...)
	case ActionClosed:
		attrs := []any{"lane", ev.Lane}
		if res.Position != nil {
			attrs = append(attrs, "amount", res.Position.Amount)
		}
		logger.Channelf(logger.ChannelClose, "position closed", attrs...)
	case ActionSiblingsCancelled:
		logger.Channelf(logger.ChannelClose, "bracket filled, siblings cancelled",
			"lane", ev.Lane, "order_id", ev.Update.OrderID, "order_type", ev.Update.OrderType)
	case ActionObserved:
		if ev.Update == nil {
			return
		}
		// NEW opens a bracket leg; CANCELED/EXPIRED/CALCULATED retire one.
		ch := logger.ChannelClose
		if ev.Update.Status == exchange.StatusNew {
			ch = logger.ChannelOpen
		}
		logger.Channelf(ch, "order update",
			"lane", ev.Lane, "order_id", ev.Update.OrderID, "order_type", ev.Update.OrderType,
			"execution_type", ev.Update.ExecutionType, "status", ev.Update.Status)
	case ActionRejected:
		if res.Verdict != nil {
			logger.Infof("%s entry rejected: %s", ev.Lane, res.Verdict.Reason)
		}
	case ActionNoopPositioned:
		logger.Infof("%s already positioned, entry ignored", ev.Lane)
	case ActionReconciled:
		logger.Debugf("%s reconciled: %s", ev.Lane, res.Phase)
	}
}
