// Package notify provides the concrete Sink implementation (a
// Telegram bot, per the teacher) and the alert message renderer.
package notify

import (
	"fmt"
	"time"

	"grid-trading-btc-binance/internal/model"
)

// Render formats a ThresholdEvent into the human-readable alert text
// the Dispatcher enqueues, grounded on the teacher's
// SendTradeNotification formatting (emoji-prefixed sections, values
// rendered at the moment the condition was observed).
func Render(evt model.ThresholdEvent) string {
	when := evt.ObservedAt.Format("02/01/2006, 15:04:05")

	if evt.Kind == model.ThresholdSingle {
		return fmt.Sprintf(
			"🚨 SINGLE %s — %s\n"+
				"Lado: %s\n"+
				"Valor: $%s\n"+
				"📅 %s",
			evt.Symbol, evt.Exchange,
			evt.Side,
			evt.TotalUsd.StringFixed(2),
			when,
		)
	}

	return fmt.Sprintf(
		"🚨 CUMULATIVE %s\n"+
			"Lado: %s\n"+
			"Total: $%s (compra $%s / venda $%s)\n"+
			"Ordens: %d em %s\n"+
			"📅 %s",
		evt.Symbol,
		evt.Side,
		evt.TotalUsd.StringFixed(2), evt.BuyUsd.StringFixed(2), evt.SellUsd.StringFixed(2),
		evt.TradeCount, evt.WindowDuration,
		when,
	)
}

// RenderAdmin formats a RecoveryManager admin event — a distinct,
// more verbose template than trading alerts, per the supplemented
// behaviour read out of original_source/ (SPEC_FULL.md).
func RenderAdmin(title, detail string, at time.Time) string {
	return fmt.Sprintf(
		"⚠️ ADMIN — %s\n%s\n📅 %s",
		title, detail, at.Format("02/01/2006, 15:04:05"),
	)
}
