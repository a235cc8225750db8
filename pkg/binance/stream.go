package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gregtusar/futures-cli/pkg/models"
	"github.com/shopspring/decimal"
)

const streamReadTimeout = 15 * time.Second

type markPriceEvent struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	MarkPrice decimal.Decimal `json:"p"`
}

// StreamPrices reads count mark price updates for symbol and hands each to
// fn on the calling goroutine. The connection is closed before returning.
func (c *FuturesClient) StreamPrices(ctx context.Context, symbol string, count int, fn func(models.Quote) error) error {
	if count <= 0 {
		return models.NewValidationError("count must be greater than 0, got %d", count)
	}

	endpoint := fmt.Sprintf("%s/ws/%s@markPrice@1s", c.streamURL, strings.ToLower(symbol))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return &models.Error{Kind: models.KindNetwork, Message: "failed to connect to price stream", Err: err}
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.logger.WithField("stream", endpoint).Debug("Price stream connected")

	for received := 0; received < count; {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			return &models.Error{Kind: models.KindNetwork, Message: "price stream", Err: err}
		}

		var ev markPriceEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return &models.Error{Kind: models.KindNetwork, Message: "price stream interrupted", Err: ctxErr}
			}
			return &models.Error{Kind: models.KindNetwork, Message: "failed to read price stream", Err: err}
		}
		if ev.EventType != "markPriceUpdate" {
			continue
		}
		received++

		if err := fn(models.Quote{
			Symbol:    ev.Symbol,
			Price:     ev.MarkPrice,
			Timestamp: time.UnixMilli(ev.EventTime),
		}); err != nil {
			return err
		}
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		c.logger.WithError(err).Debug("Failed to send close frame")
	}
	return nil
}
