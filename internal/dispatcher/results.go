package dispatcher

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gregtusar/futures-cli/pkg/models"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of one successful command.
type Result interface {
	// Render prints the result for a person reading the terminal.
	Render(w io.Writer)
	// Fields summarises the result for the log.
	Fields() logrus.Fields
}

type OrderPlaced struct {
	Ack *models.OrderAck
}

func (r *OrderPlaced) Render(w io.Writer) {
	a := r.Ack
	fmt.Fprintf(w, "Order placed: %d (%s)\n", a.OrderID, a.Status)
	fmt.Fprintf(w, "  %s %s %s %s", a.Type, a.Side, a.Quantity, a.Symbol)
	if a.Type != models.OrderTypeMarket {
		fmt.Fprintf(w, " @ %s", a.Price)
	}
	if a.Type == models.OrderTypeStopLimit {
		fmt.Fprintf(w, " stop %s", a.StopPrice)
	}
	if a.TimeInForce != "" && a.Type != models.OrderTypeMarket {
		fmt.Fprintf(w, " %s", a.TimeInForce)
	}
	fmt.Fprintln(w)
	if a.ClientOrderID != "" {
		fmt.Fprintf(w, "  client order id: %s\n", a.ClientOrderID)
	}
}

func (r *OrderPlaced) Fields() logrus.Fields {
	return logrus.Fields{
		"order_id":        r.Ack.OrderID,
		"client_order_id": r.Ack.ClientOrderID,
		"symbol":          r.Ack.Symbol,
		"side":            r.Ack.Side,
		"type":            r.Ack.Type,
		"quantity":        r.Ack.Quantity.String(),
		"status":          r.Ack.Status,
	}
}

type OrderCanceled struct {
	Ack *models.CancelAck
}

func (r *OrderCanceled) Render(w io.Writer) {
	fmt.Fprintf(w, "Order %d cancelled (%s)\n", r.Ack.OrderID, r.Ack.Status)
}

func (r *OrderCanceled) Fields() logrus.Fields {
	return logrus.Fields{
		"order_id": r.Ack.OrderID,
		"symbol":   r.Ack.Symbol,
		"status":   r.Ack.Status,
	}
}

type OpenOrders struct {
	Symbol string
	Orders []models.Order
}

func (r *OpenOrders) Render(w io.Writer) {
	if len(r.Orders) == 0 {
		fmt.Fprintln(w, "No open orders")
		return
	}

	fmt.Fprintf(w, "Open orders (%d):\n", len(r.Orders))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSYMBOL\tSIDE\tTYPE\tQTY\tPRICE\tSTOP\tSTATUS")
	for _, o := range r.Orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OrderID, o.Symbol, o.Side, o.Type, o.Quantity, o.Price, o.StopPrice, o.Status)
	}
	tw.Flush()
}

func (r *OpenOrders) Fields() logrus.Fields {
	return logrus.Fields{
		"symbol": r.Symbol,
		"count":  len(r.Orders),
	}
}

type Balances struct {
	Balances []models.Balance
}

// Render shows only assets with a non-zero wallet balance.
func (r *Balances) Render(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	shown := 0
	for _, b := range r.Balances {
		if b.WalletBalance.IsZero() {
			continue
		}
		if shown == 0 {
			fmt.Fprintln(tw, "ASSET\tWALLET\tAVAILABLE")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Asset, b.WalletBalance, b.AvailableBalance)
		shown++
	}
	tw.Flush()

	if shown == 0 {
		fmt.Fprintln(w, "No balances")
	}
}

func (r *Balances) Fields() logrus.Fields {
	fields := logrus.Fields{"assets": len(r.Balances)}
	for _, b := range r.Balances {
		if !b.WalletBalance.IsZero() {
			fields["balance_"+b.Asset] = b.WalletBalance.String()
		}
	}
	return fields
}

type PriceQuote struct {
	Quote *models.Quote
}

func (r *PriceQuote) Render(w io.Writer) {
	fmt.Fprintf(w, "Current price for %s: %s (%s)\n", r.Quote.Symbol, r.Quote.Price, r.Quote.Timestamp.Format("2006-01-02 15:04:05"))
}

func (r *PriceQuote) Fields() logrus.Fields {
	return logrus.Fields{
		"symbol": r.Quote.Symbol,
		"price":  r.Quote.Price.String(),
	}
}

type PriceStream struct {
	Symbol   string
	Received int
	Last     models.Quote
}

func (r *PriceStream) Render(w io.Writer) {
	fmt.Fprintf(w, "Received %d updates for %s\n", r.Received, r.Symbol)
}

func (r *PriceStream) Fields() logrus.Fields {
	return logrus.Fields{
		"symbol":     r.Symbol,
		"updates":    r.Received,
		"last_price": r.Last.Price.String(),
	}
}
