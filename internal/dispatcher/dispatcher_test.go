package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gregtusar/futures-cli/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls  []string
	placed []*models.OrderRequest
	err    error
	orders []models.Order
	quotes []models.Quote
}

func (f *fakeClient) PlaceOrder(_ context.Context, order *models.OrderRequest) (*models.OrderAck, error) {
	f.calls = append(f.calls, "place")
	f.placed = append(f.placed, order)
	if f.err != nil {
		return nil, f.err
	}
	return &models.OrderAck{Order: models.Order{
		OrderID:       int64(1000 + len(f.placed)),
		ClientOrderID: "cid",
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          order.Type,
		Quantity:      order.Quantity,
		Price:         order.Price,
		StopPrice:     order.StopPrice,
		TimeInForce:   order.TimeInForce,
		Status:        models.OrderStatusNew,
	}}, nil
}

func (f *fakeClient) CancelOrder(_ context.Context, symbol string, orderID int64) (*models.CancelAck, error) {
	f.calls = append(f.calls, "cancel")
	if f.err != nil {
		return nil, f.err
	}
	return &models.CancelAck{OrderID: orderID, Symbol: symbol, Status: models.OrderStatusCanceled}, nil
}

func (f *fakeClient) OpenOrders(_ context.Context, symbol string) ([]models.Order, error) {
	f.calls = append(f.calls, "orders:"+symbol)
	return f.orders, f.err
}

func (f *fakeClient) Balances(context.Context) ([]models.Balance, error) {
	f.calls = append(f.calls, "balance")
	if f.err != nil {
		return nil, f.err
	}
	return []models.Balance{
		{Asset: "USDT", WalletBalance: decimal.RequireFromString("1000.5"), AvailableBalance: decimal.RequireFromString("900")},
		{Asset: "BNB", WalletBalance: decimal.Zero, AvailableBalance: decimal.Zero},
	}, nil
}

func (f *fakeClient) Price(_ context.Context, symbol string) (*models.Quote, error) {
	f.calls = append(f.calls, "price")
	if f.err != nil {
		return nil, f.err
	}
	return &models.Quote{Symbol: symbol, Price: decimal.RequireFromString("65000.1"), Timestamp: time.Unix(1700000000, 0)}, nil
}

func (f *fakeClient) StreamPrices(_ context.Context, _ string, count int, fn func(models.Quote) error) error {
	f.calls = append(f.calls, "watch")
	if f.err != nil {
		return f.err
	}
	for i := 0; i < count && i < len(f.quotes); i++ {
		if err := fn(f.quotes[i]); err != nil {
			return err
		}
	}
	return nil
}

func newTestDispatcher(client *fakeClient) (*Dispatcher, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(client, logger, 2), hook
}

func TestLimitOrderScenario(t *testing.T) {
	client := &fakeClient{}
	d, hook := newTestDispatcher(client)

	res, err := d.Dispatch(context.Background(), "limit", []string{"BTCUSDT", "BUY", "0.01", "50000", "GTC"}, io.Discard)
	require.NoError(t, err)

	require.Equal(t, []string{"place"}, client.calls)
	req := client.placed[0]
	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, models.OrderSideBuy, req.Side)
	assert.Equal(t, models.OrderTypeLimit, req.Type)
	assert.True(t, req.Quantity.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, req.Price.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, models.TimeInForceGTC, req.TimeInForce)

	placed, ok := res.(*OrderPlaced)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusNew, placed.Ack.Status)
	assert.NotZero(t, placed.Ack.OrderID)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "limit", entry.Data["action"])
	assert.Equal(t, "ok", entry.Data["outcome"])
	assert.Equal(t, placed.Ack.OrderID, entry.Data["order_id"])
}

func TestMarketOrderEchoesInput(t *testing.T) {
	client := &fakeClient{}
	d, _ := newTestDispatcher(client)

	res, err := d.Dispatch(context.Background(), "market", []string{"btcusdt", "buy", "0.01"}, io.Discard)
	require.NoError(t, err)

	ack := res.(*OrderPlaced).Ack
	assert.Equal(t, "BTCUSDT", ack.Symbol)
	assert.Equal(t, models.OrderSideBuy, ack.Side)
	assert.Equal(t, "0.01", ack.Quantity.String())
	assert.Equal(t, models.OrderTypeMarket, ack.Type)
}

func TestStopAliasPlacesStopLimit(t *testing.T) {
	client := &fakeClient{}
	d, _ := newTestDispatcher(client)

	_, err := d.Dispatch(context.Background(), "STOP", []string{"BTCUSDT", "SELL", "1", "49000", "49500", "fok"}, io.Discard)
	require.NoError(t, err)

	req := client.placed[0]
	assert.Equal(t, models.OrderTypeStopLimit, req.Type)
	assert.True(t, req.StopPrice.Equal(decimal.NewFromInt(49500)))
	assert.Equal(t, models.TimeInForceFOK, req.TimeInForce)
}

func TestValidationRejectsWithoutCallingExchange(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{"zero quantity", "market", []string{"BTCUSDT", "BUY", "0"}},
		{"negative quantity", "limit", []string{"BTCUSDT", "BUY", "-1", "50000"}},
		{"quantity not a number", "market", []string{"BTCUSDT", "BUY", "lots"}},
		{"limit missing price", "limit", []string{"BTCUSDT", "BUY", "0.01"}},
		{"limit zero price", "limit", []string{"BTCUSDT", "BUY", "0.01", "0"}},
		{"stop limit missing stop price", "stop-limit", []string{"BTCUSDT", "BUY", "0.01", "50000"}},
		{"stop limit zero stop price", "stop-limit", []string{"BTCUSDT", "BUY", "0.01", "50000", "0"}},
		{"bad side", "market", []string{"BTCUSDT", "HOLD", "1"}},
		{"bad time in force", "limit", []string{"BTCUSDT", "BUY", "1", "100", "DAY"}},
		{"too many arguments", "price", []string{"BTCUSDT", "ETHUSDT"}},
		{"bad order id", "cancel", []string{"BTCUSDT", "abc"}},
		{"bad watch count", "watch", []string{"BTCUSDT", "-3"}},
		{"unknown command", "buy-everything", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			d, hook := newTestDispatcher(client)

			res, err := d.Dispatch(context.Background(), tt.command, tt.args, io.Discard)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, models.ErrValidation), "got %v", err)
			assert.Empty(t, client.calls)

			require.Len(t, hook.AllEntries(), 1)
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
			assert.Equal(t, "validation", hook.LastEntry().Data["error_kind"])
		})
	}
}

func TestCancelNotFound(t *testing.T) {
	client := &fakeClient{err: &models.Error{Kind: models.KindNotFound, Code: -2011, Message: "Unknown order sent."}}
	d, hook := newTestDispatcher(client)

	_, err := d.Dispatch(context.Background(), "cancel", []string{"BTCUSDT", "999"}, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Contains(t, err.Error(), "failed to cancel order 999")
	assert.Equal(t, []string{"cancel"}, client.calls)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "not_found", hook.LastEntry().Data["error_kind"])
}

func TestRemoteErrorsAreReported(t *testing.T) {
	for _, kind := range []models.ErrorKind{models.KindNetwork, models.KindRateLimit, models.KindAuth} {
		t.Run(string(kind), func(t *testing.T) {
			client := &fakeClient{err: &models.Error{Kind: kind, Message: "boom"}}
			d, hook := newTestDispatcher(client)

			_, err := d.Dispatch(context.Background(), "balance", nil, io.Discard)
			require.Error(t, err)
			assert.Equal(t, kind, models.KindOf(err))
			assert.Equal(t, string(kind), hook.LastEntry().Data["error_kind"])
		})
	}
}

func TestReadOnlyCommandsRepeat(t *testing.T) {
	client := &fakeClient{}
	d, hook := newTestDispatcher(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := d.Dispatch(ctx, "price", []string{"btcusdt"}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "BTCUSDT", res.(*PriceQuote).Quote.Symbol)

		res, err = d.Dispatch(ctx, "balance", nil, io.Discard)
		require.NoError(t, err)
		assert.Len(t, res.(*Balances).Balances, 2)
	}
	assert.Equal(t, []string{"price", "balance", "price", "balance"}, client.calls)
	assert.Empty(t, client.placed)
	assert.Len(t, hook.AllEntries(), 4)
}

func TestOpenOrdersOptionalSymbol(t *testing.T) {
	client := &fakeClient{}
	d, _ := newTestDispatcher(client)

	_, err := d.Dispatch(context.Background(), "orders", nil, io.Discard)
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), "orders", []string{"ethusdt"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"orders:", "orders:ETHUSDT"}, client.calls)
}

func TestWatchStreamsToOutput(t *testing.T) {
	client := &fakeClient{quotes: []models.Quote{
		{Symbol: "BTCUSDT", Price: decimal.RequireFromString("65000.1"), Timestamp: time.Unix(1700000000, 0)},
		{Symbol: "BTCUSDT", Price: decimal.RequireFromString("65000.2"), Timestamp: time.Unix(1700000001, 0)},
		{Symbol: "BTCUSDT", Price: decimal.RequireFromString("65000.3"), Timestamp: time.Unix(1700000002, 0)},
	}}
	d, _ := newTestDispatcher(client)

	var out bytes.Buffer
	res, err := d.Dispatch(context.Background(), "watch", []string{"btcusdt"}, &out)
	require.NoError(t, err)

	stream := res.(*PriceStream)
	assert.Equal(t, 2, stream.Received)
	assert.Equal(t, "65000.2", stream.Last.Price.String())
	assert.Contains(t, out.String(), "BTCUSDT  65000.1")
	assert.NotContains(t, out.String(), "65000.3")

	out.Reset()
	res, err = d.Dispatch(context.Background(), "watch", []string{"btcusdt", "3"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, res.(*PriceStream).Received)
}

func TestLookup(t *testing.T) {
	cmd, ok := Lookup("Stop")
	require.True(t, ok)
	assert.Equal(t, "stop-limit", cmd.Name)
	assert.Equal(t, "<symbol> <side> <qty> <price> <stop_price> [tif]", cmd.Usage())
	assert.Equal(t, 5, cmd.RequiredArgs())

	_, ok = Lookup("quit")
	assert.False(t, ok)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	(&OrderPlaced{Ack: &models.OrderAck{Order: models.Order{
		OrderID: 42, Symbol: "BTCUSDT", Side: models.OrderSideBuy, Type: models.OrderTypeLimit,
		Quantity: decimal.RequireFromString("0.01"), Price: decimal.NewFromInt(50000),
		TimeInForce: models.TimeInForceGTC, Status: models.OrderStatusNew,
	}}}).Render(&buf)
	assert.Equal(t, "Order placed: 42 (NEW)\n  LIMIT BUY 0.01 BTCUSDT @ 50000 GTC\n", buf.String())

	buf.Reset()
	(&OpenOrders{}).Render(&buf)
	assert.Equal(t, "No open orders\n", buf.String())

	buf.Reset()
	(&Balances{Balances: []models.Balance{{Asset: "USDT", WalletBalance: decimal.NewFromInt(5), AvailableBalance: decimal.NewFromInt(4)}}}).Render(&buf)
	assert.Contains(t, buf.String(), "USDT")
	assert.Contains(t, buf.String(), "AVAILABLE")

	buf.Reset()
	(&Balances{Balances: []models.Balance{{Asset: "BNB"}}}).Render(&buf)
	assert.Equal(t, "No balances\n", buf.String())
}
