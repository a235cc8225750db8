package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregtusar/futures-cli/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type tickerPriceResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   int64           `json:"time"`
}

type balanceResponse struct {
	Asset            string          `json:"asset"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	UpdateTime       int64           `json:"updateTime"`
}

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string          `json:"filterType"`
			MinQty     decimal.Decimal `json:"minQty"`
			MaxQty     decimal.Decimal `json:"maxQty"`
			StepSize   decimal.Decimal `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

func (c *FuturesClient) Price(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))

	var resp tickerPriceResponse
	if err := c.doRequest(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, public, &resp); err != nil {
		return nil, err
	}

	ts := c.now()
	if resp.Time > 0 {
		ts = time.UnixMilli(resp.Time)
	}
	return &models.Quote{
		Symbol:    resp.Symbol,
		Price:     resp.Price,
		Timestamp: ts,
	}, nil
}

func (c *FuturesClient) Balances(ctx context.Context) ([]models.Balance, error) {
	var resp []balanceResponse
	if err := c.doRequest(ctx, http.MethodGet, "/fapi/v2/balance", nil, signed, &resp); err != nil {
		return nil, err
	}

	balances := make([]models.Balance, 0, len(resp))
	for _, b := range resp {
		bal := models.Balance{
			Asset:            b.Asset,
			WalletBalance:    b.Balance,
			AvailableBalance: b.AvailableBalance,
		}
		if b.UpdateTime > 0 {
			bal.UpdatedAt = time.UnixMilli(b.UpdateTime)
		}
		balances = append(balances, bal)
	}
	return balances, nil
}

func (c *FuturesClient) ServerTime(ctx context.Context) (time.Time, error) {
	var resp serverTimeResponse
	if err := c.doRequest(ctx, http.MethodGet, "/fapi/v1/time", nil, public, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime), nil
}

// Verify checks connectivity and that the credentials are accepted. An
// auth failure here is fatal to the session.
func (c *FuturesClient) Verify(ctx context.Context) error {
	serverTime, err := c.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("connection check failed: %w", err)
	}

	balances, err := c.Balances(ctx)
	if err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"server_time": serverTime.UTC(),
		"assets":      len(balances),
		"endpoint":    c.baseURL,
	}).Info("Connected to Binance Futures")
	return nil
}

// AlignQuantity rounds qty down to the symbol's LOT_SIZE step. The filter
// table is fetched once and kept for the session.
func (c *FuturesClient) AlignQuantity(ctx context.Context, symbol string, qty decimal.Decimal) (decimal.Decimal, error) {
	lot, err := c.lotSize(ctx, strings.ToUpper(symbol))
	if err != nil {
		return decimal.Zero, err
	}
	if !lot.StepSize.IsPositive() {
		return qty, nil
	}

	aligned := qty.Div(lot.StepSize).Floor().Mul(lot.StepSize)
	if !aligned.IsPositive() || aligned.LessThan(lot.MinQty) {
		return decimal.Zero, models.NewValidationError("quantity %s is below the minimum %s for %s", qty, lot.MinQty, lot.Symbol)
	}
	if lot.MaxQty.IsPositive() && aligned.GreaterThan(lot.MaxQty) {
		return decimal.Zero, models.NewValidationError("quantity %s is above the maximum %s for %s", qty, lot.MaxQty, lot.Symbol)
	}
	return aligned, nil
}

func (c *FuturesClient) lotSize(ctx context.Context, symbol string) (models.LotSize, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lotSizes == nil {
		var resp exchangeInfoResponse
		if err := c.doRequest(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, public, &resp); err != nil {
			return models.LotSize{}, err
		}

		lotSizes := make(map[string]models.LotSize, len(resp.Symbols))
		for _, s := range resp.Symbols {
			lot := models.LotSize{Symbol: s.Symbol}
			for _, f := range s.Filters {
				if f.FilterType == "LOT_SIZE" {
					lot.MinQty = f.MinQty
					lot.MaxQty = f.MaxQty
					lot.StepSize = f.StepSize
					break
				}
			}
			lotSizes[s.Symbol] = lot
		}
		c.lotSizes = lotSizes
	}

	lot, ok := c.lotSizes[symbol]
	if !ok {
		return models.LotSize{}, models.NewValidationError("symbol %s not found", symbol)
	}
	return lot, nil
}
