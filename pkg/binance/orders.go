package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gregtusar/futures-cli/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// The futures API names a stop-limit order "STOP".
const wireStopLimit = "STOP"

type orderResponse struct {
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	StopPrice     decimal.Decimal `json:"stopPrice"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	TimeInForce   string          `json:"timeInForce"`
	UpdateTime    int64           `json:"updateTime"`
}

func (r *orderResponse) toOrder() models.Order {
	o := models.Order{
		OrderID:       r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Symbol:        r.Symbol,
		Side:          models.OrderSide(r.Side),
		Type:          fromWireType(r.Type),
		Quantity:      r.OrigQty,
		FilledQty:     r.ExecutedQty,
		Price:         r.Price,
		StopPrice:     r.StopPrice,
		TimeInForce:   models.TimeInForce(r.TimeInForce),
		Status:        models.OrderStatus(r.Status),
	}
	if r.UpdateTime > 0 {
		o.UpdatedAt = time.UnixMilli(r.UpdateTime)
	}
	return o
}

func toWireType(t models.OrderType) string {
	if t == models.OrderTypeStopLimit {
		return wireStopLimit
	}
	return string(t)
}

func fromWireType(t string) models.OrderType {
	if t == wireStopLimit {
		return models.OrderTypeStopLimit
	}
	return models.OrderType(t)
}

// PlaceOrder submits one order. The request is validated again here so a
// malformed order never leaves the process.
func (c *FuturesClient) PlaceOrder(ctx context.Context, order *models.OrderRequest) (*models.OrderAck, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(order.Symbol)
	qty := order.Quantity
	if c.alignQuantity {
		aligned, err := c.AlignQuantity(ctx, symbol, qty)
		if err != nil {
			return nil, err
		}
		qty = aligned
	}

	clientOrderID := order.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(order.Side))
	params.Set("type", toWireType(order.Type))
	params.Set("quantity", qty.String())
	params.Set("newClientOrderId", clientOrderID)
	params.Set("newOrderRespType", "RESULT")
	if order.Type != models.OrderTypeMarket {
		params.Set("price", order.Price.String())
		params.Set("timeInForce", string(order.TimeInForce))
	}
	if order.Type == models.OrderTypeStopLimit {
		params.Set("stopPrice", order.StopPrice.String())
	}

	c.logger.WithFields(logrus.Fields{
		"symbol":          symbol,
		"client_order_id": clientOrderID,
		"order":           order.String(),
	}).Debug("Placing order")

	var resp orderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/fapi/v1/order", params, signed, &resp); err != nil {
		return nil, err
	}

	return &models.OrderAck{Order: resp.toOrder()}, nil
}

func (c *FuturesClient) CancelOrder(ctx context.Context, symbol string, orderID int64) (*models.CancelAck, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	var resp orderResponse
	if err := c.doRequest(ctx, http.MethodDelete, "/fapi/v1/order", params, signed, &resp); err != nil {
		return nil, err
	}

	return &models.CancelAck{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Status:        models.OrderStatus(resp.Status),
	}, nil
}

// OpenOrders lists open orders for symbol, or for every symbol when symbol
// is empty.
func (c *FuturesClient) OpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", strings.ToUpper(symbol))
	}

	var resp []orderResponse
	if err := c.doRequest(ctx, http.MethodGet, "/fapi/v1/openOrders", params, signed, &resp); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, resp[i].toOrder())
	}
	return orders, nil
}
