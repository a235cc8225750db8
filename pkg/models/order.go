package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// ParseSide accepts BUY/SELL in any case.
func ParseSide(s string) (OrderSide, error) {
	switch side := OrderSide(strings.ToUpper(strings.TrimSpace(s))); side {
	case OrderSideBuy, OrderSideSell:
		return side, nil
	default:
		return "", NewValidationError("side must be BUY or SELL, got %q", s)
	}
}

// ParseTimeInForce accepts GTC/IOC/FOK in any case. An empty string yields GTC.
func ParseTimeInForce(s string) (TimeInForce, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return TimeInForceGTC, nil
	}
	switch tif := TimeInForce(s); tif {
	case TimeInForceGTC, TimeInForceIOC, TimeInForceFOK:
		return tif, nil
	default:
		return "", NewValidationError("time in force must be GTC, IOC or FOK, got %q", s)
	}
}

// ParseDecimal parses a user supplied number for the named field.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, NewValidationError("%s must be a number, got %q", field, s)
	}
	return d, nil
}

// OrderRequest is a single order as entered by the user. It is sent once and
// never mutated after validation.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	TimeInForce   TimeInForce
	ClientOrderID string
}

// Validate checks the request locally, before anything reaches the exchange.
func (r *OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return NewValidationError("symbol is required")
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return NewValidationError("side must be BUY or SELL, got %q", r.Side)
	}
	if !r.Quantity.IsPositive() {
		return NewValidationError("quantity must be greater than 0, got %s", r.Quantity)
	}

	switch r.Type {
	case OrderTypeMarket:
		return nil
	case OrderTypeLimit, OrderTypeStopLimit:
		if !r.Price.IsPositive() {
			return NewValidationError("%s order requires price greater than 0", r.Type)
		}
		if r.Type == OrderTypeStopLimit && !r.StopPrice.IsPositive() {
			return NewValidationError("%s order requires stop price greater than 0", r.Type)
		}
		switch r.TimeInForce {
		case TimeInForceGTC, TimeInForceIOC, TimeInForceFOK:
		default:
			return NewValidationError("time in force must be GTC, IOC or FOK, got %q", r.TimeInForce)
		}
		return nil
	default:
		return NewValidationError("unsupported order type %q", r.Type)
	}
}

func (r *OrderRequest) String() string {
	switch r.Type {
	case OrderTypeLimit:
		return fmt.Sprintf("%s %s %s %s @ %s %s", r.Type, r.Side, r.Quantity, r.Symbol, r.Price, r.TimeInForce)
	case OrderTypeStopLimit:
		return fmt.Sprintf("%s %s %s %s @ %s stop %s %s", r.Type, r.Side, r.Quantity, r.Symbol, r.Price, r.StopPrice, r.TimeInForce)
	default:
		return fmt.Sprintf("%s %s %s %s", r.Type, r.Side, r.Quantity, r.Symbol)
	}
}

// Order is an order as reported by the exchange.
type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	TimeInForce   TimeInForce
	Status        OrderStatus
	UpdatedAt     time.Time
}

// OrderAck is the exchange's answer to a placed order.
type OrderAck struct {
	Order
}

type CancelAck struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Status        OrderStatus
}
