package dispatcher

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gregtusar/futures-cli/pkg/models"
)

var (
	paramSymbol    = Param{Name: "symbol", Prompt: "Symbol (e.g., BTCUSDT)"}
	paramSide      = Param{Name: "side", Prompt: "Side (BUY/SELL)"}
	paramQuantity  = Param{Name: "qty", Prompt: "Quantity"}
	paramPrice     = Param{Name: "price", Prompt: "Limit price"}
	paramStopPrice = Param{Name: "stop_price", Prompt: "Stop price"}
	paramTIF       = Param{Name: "tif", Prompt: "Time in force (GTC/IOC/FOK, default GTC)", Optional: true}
)

var commands = []Command{
	{
		Name:    "market",
		Summary: "Place a market order",
		Params:  []Param{paramSymbol, paramSide, paramQuantity},
		run:     runPlaceOrder(models.OrderTypeMarket),
	},
	{
		Name:    "limit",
		Summary: "Place a limit order",
		Params:  []Param{paramSymbol, paramSide, paramQuantity, paramPrice, paramTIF},
		run:     runPlaceOrder(models.OrderTypeLimit),
	},
	{
		Name:    "stop-limit",
		Aliases: []string{"stop"},
		Summary: "Place a stop-limit order",
		Params:  []Param{paramSymbol, paramSide, paramQuantity, paramPrice, paramStopPrice, paramTIF},
		run:     runPlaceOrder(models.OrderTypeStopLimit),
	},
	{
		Name:    "cancel",
		Summary: "Cancel an open order",
		Params:  []Param{paramSymbol, {Name: "order_id", Prompt: "Order ID"}},
		run:     runCancel,
	},
	{
		Name:    "orders",
		Summary: "Show open orders",
		Params:  []Param{{Name: "symbol", Prompt: "Symbol (or press Enter for all)", Optional: true}},
		run:     runOpenOrders,
	},
	{
		Name:    "balance",
		Summary: "Show account balance",
		run:     runBalance,
	},
	{
		Name:    "price",
		Summary: "Get current price",
		Params:  []Param{paramSymbol},
		run:     runPrice,
	},
	{
		Name:    "watch",
		Summary: "Stream mark price updates",
		Params:  []Param{paramSymbol, {Name: "count", Prompt: "Number of updates", Optional: true}},
		run:     runWatch,
	},
}

// parseOrder builds an order request from positional arguments in the
// order symbol, side, qty, [price], [stop_price], [tif].
func parseOrder(orderType models.OrderType, args []string) (*models.OrderRequest, error) {
	req := &models.OrderRequest{
		Symbol: strings.ToUpper(strings.TrimSpace(args[0])),
		Type:   orderType,
	}

	var err error
	if req.Side, err = models.ParseSide(args[1]); err != nil {
		return nil, err
	}
	if req.Quantity, err = models.ParseDecimal("quantity", args[2]); err != nil {
		return nil, err
	}

	rest := args[3:]
	if orderType != models.OrderTypeMarket {
		if err := parseLimitFields(req, rest); err != nil {
			return nil, err
		}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func parseLimitFields(req *models.OrderRequest, rest []string) error {
	var err error
	if req.Price, err = models.ParseDecimal("price", rest[0]); err != nil {
		return err
	}
	rest = rest[1:]

	if req.Type == models.OrderTypeStopLimit {
		if req.StopPrice, err = models.ParseDecimal("stop price", rest[0]); err != nil {
			return err
		}
		rest = rest[1:]
	}

	tif := ""
	if len(rest) > 0 {
		tif = rest[0]
	}
	req.TimeInForce, err = models.ParseTimeInForce(tif)
	return err
}

func runPlaceOrder(orderType models.OrderType) func(context.Context, *Dispatcher, []string, io.Writer) (Result, error) {
	return func(ctx context.Context, d *Dispatcher, args []string, _ io.Writer) (Result, error) {
		req, err := parseOrder(orderType, args)
		if err != nil {
			return nil, err
		}

		ack, err := d.client.PlaceOrder(ctx, req)
		if err != nil {
			return nil, wrapf(err, "failed to place %s order", strings.ReplaceAll(strings.ToLower(string(orderType)), "_", "-"))
		}
		return &OrderPlaced{Ack: ack}, nil
	}
}

func runCancel(ctx context.Context, d *Dispatcher, args []string, _ io.Writer) (Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if symbol == "" {
		return nil, models.NewValidationError("symbol is required")
	}
	orderID, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
	if err != nil || orderID <= 0 {
		return nil, models.NewValidationError("order id must be a positive integer, got %q", args[1])
	}

	ack, err := d.client.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return nil, wrapf(err, "failed to cancel order %d", orderID)
	}
	return &OrderCanceled{Ack: ack}, nil
}

func runOpenOrders(ctx context.Context, d *Dispatcher, args []string, _ io.Writer) (Result, error) {
	symbol := ""
	if len(args) > 0 {
		symbol = strings.ToUpper(strings.TrimSpace(args[0]))
	}

	orders, err := d.client.OpenOrders(ctx, symbol)
	if err != nil {
		return nil, wrapf(err, "failed to get open orders")
	}
	return &OpenOrders{Symbol: symbol, Orders: orders}, nil
}

func runBalance(ctx context.Context, d *Dispatcher, _ []string, _ io.Writer) (Result, error) {
	balances, err := d.client.Balances(ctx)
	if err != nil {
		return nil, wrapf(err, "failed to get balance")
	}
	return &Balances{Balances: balances}, nil
}

func runPrice(ctx context.Context, d *Dispatcher, args []string, _ io.Writer) (Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if symbol == "" {
		return nil, models.NewValidationError("symbol is required")
	}

	quote, err := d.client.Price(ctx, symbol)
	if err != nil {
		return nil, wrapf(err, "failed to get price for %s", symbol)
	}
	return &PriceQuote{Quote: quote}, nil
}

func runWatch(ctx context.Context, d *Dispatcher, args []string, out io.Writer) (Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if symbol == "" {
		return nil, models.NewValidationError("symbol is required")
	}
	count := d.watchCount
	if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil || n <= 0 {
			return nil, models.NewValidationError("count must be a positive integer, got %q", args[1])
		}
		count = n
	}

	res := &PriceStream{Symbol: symbol}
	err := d.client.StreamPrices(ctx, symbol, count, func(q models.Quote) error {
		res.Received++
		res.Last = q
		_, err := fmt.Fprintf(out, "%s  %s  %s\n", q.Timestamp.Format("15:04:05"), q.Symbol, q.Price)
		return err
	})
	if err != nil {
		return nil, wrapf(err, "price stream for %s stopped after %d updates", symbol, res.Received)
	}
	return res, nil
}
