package notifier

import (
	"context"
	"fmt"
	"time"

	"signalbot/internal/bracket"
	"signalbot/internal/lifecycle"
	"signalbot/internal/logger"
)

// Observer turns notable lifecycle events into pushes. Sends happen on a
// background worker; when the queue is full the message is dropped.
type Observer struct {
	sender TextNotifier
	queue  chan string
	now    func() time.Time
}

var _ lifecycle.Observer = (*Observer)(nil)

func NewObserver(sender TextNotifier, buffer int) *Observer {
	if buffer <= 0 {
		buffer = 32
	}
	return &Observer{sender: sender, queue: make(chan string, buffer), now: time.Now}
}

// Run drains the queue until ctx is done.
func (o *Observer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-o.queue:
			if err := o.sender.SendText(text); err != nil {
				logger.Warnf("notifier: send failed: %v", err)
			}
		}
	}
}

func (o *Observer) Observe(ev lifecycle.Event) {
	card, ok := o.card(ev)
	if !ok {
		return
	}
	select {
	case o.queue <- card.Markdown():
	default:
		logger.Warnf("notifier: queue full, dropping %q for %s", card.Title, card.Lane)
	}
}

func (o *Observer) card(ev lifecycle.Event) (Card, bool) {
	res := ev.Result
	c := Card{Lane: ev.Lane, Trace: ev.TraceID, At: o.now()}
	switch {
	case res.Err != nil && res.Err.Category == lifecycle.CategoryStuckPosition:
		c.Icon, c.Title = "🚨", "Position without protection"
		c.Note = res.Err.Error()
		addBracket(&c, res.Bracket)
	case res.Action == lifecycle.ActionOpened:
		c.Icon, c.Title = "🟢", "Position opened"
		addBracket(&c, res.Bracket)
		if v := res.Verdict; v != nil {
			c.Add("ma", fmt.Sprintf("%g", v.MA))
			c.Add("deviation", fmt.Sprintf("%.2f%%", v.Deviation*100))
		}
	case res.Action == lifecycle.ActionClosed:
		c.Icon, c.Title = "🔴", "Position closed"
		if p := res.Position; p != nil {
			c.Add("side", string(p.Side()))
			c.Add("amount", fmt.Sprintf("%g", p.Amount))
		}
		if res.Err != nil {
			c.Note = res.Err.Error()
		}
	case res.Action == lifecycle.ActionSiblingsCancelled:
		c.Icon, c.Title = "🏁", "Bracket filled"
		if u := ev.Update; u != nil {
			c.Add("order", fmt.Sprintf("%s #%d", u.OrderType, u.OrderID))
			c.Add("status", u.Status)
		}
	case res.Err != nil:
		c.Icon, c.Title = "⚠️", "Failure: "+string(res.Err.Category)
		c.Note = res.Err.Error()
	default:
		return Card{}, false
	}
	return c, true
}

func addBracket(c *Card, b *bracket.Set) {
	if b == nil {
		return
	}
	c.Add("side", string(b.Side))
	c.Add("quantity", b.Quantity.String())
	c.Add("entry", b.EntryPriceString())
	c.Add("take profit", b.TakeProfitString())
	c.Add("stop loss", b.StopLossString())
}
