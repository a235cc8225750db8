package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gregtusar/futures-cli/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	MainnetBaseURL   = "https://fapi.binance.com"
	TestnetBaseURL   = "https://testnet.binancefuture.com"
	MainnetStreamURL = "wss://fstream.binance.com"
	TestnetStreamURL = "wss://stream.binancefuture.com"

	DefaultRecvWindow = 5000
	DefaultTimeout    = 30 * time.Second

	maxResponseSize = 4 << 20
)

// Client is the set of futures operations the command line exposes. Every
// method is a single attempt against the exchange.
type Client interface {
	PlaceOrder(ctx context.Context, order *models.OrderRequest) (*models.OrderAck, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*models.CancelAck, error)
	OpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	Balances(ctx context.Context) ([]models.Balance, error)
	Price(ctx context.Context, symbol string) (*models.Quote, error)
	StreamPrices(ctx context.Context, symbol string, count int, fn func(models.Quote) error) error
}

type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool

	// BaseURL and StreamURL override the environment endpoints.
	BaseURL   string
	StreamURL string

	Timeout           time.Duration
	RecvWindow        int64
	RequestsPerSecond float64
	AlignQuantity     bool
}

type FuturesClient struct {
	signer        *Signer
	baseURL       string
	streamURL     string
	recvWindow    int64
	httpClient    *http.Client
	limiter       *rate.Limiter
	alignQuantity bool
	logger        *logrus.Logger
	now           func() time.Time

	mu       sync.Mutex
	lotSizes map[string]models.LotSize
}

var _ Client = (*FuturesClient)(nil)

func NewFuturesClient(cfg Config, logger *logrus.Logger) *FuturesClient {
	baseURL, streamURL := MainnetBaseURL, MainnetStreamURL
	if cfg.Testnet {
		baseURL, streamURL = TestnetBaseURL, TestnetStreamURL
	}
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.StreamURL != "" {
		streamURL = strings.TrimRight(cfg.StreamURL, "/")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	recvWindow := cfg.RecvWindow
	if recvWindow <= 0 {
		recvWindow = DefaultRecvWindow
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &FuturesClient{
		signer:        NewSigner(cfg.APIKey, cfg.APISecret),
		baseURL:       baseURL,
		streamURL:     streamURL,
		recvWindow:    recvWindow,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       limiter,
		alignQuantity: cfg.AlignQuantity,
		logger:        logger,
		now:           time.Now,
	}
}

// BaseURL reports the REST endpoint in use.
func (c *FuturesClient) BaseURL() string {
	return c.baseURL
}

type security int

const (
	public security = iota
	signed
)

type apiError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

func (c *FuturesClient) doRequest(ctx context.Context, method, path string, params url.Values, sec security, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &models.Error{Kind: models.KindNetwork, Message: fmt.Sprintf("%s %s not sent", method, path), Err: err}
		}
	}

	query := params.Encode()
	if sec == signed {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		query = params.Encode()
		query += "&signature=" + c.signer.Sign(query)
	}

	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if sec == signed {
		c.signer.AddAuthHeaders(req)
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("Sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &models.Error{Kind: models.KindNetwork, Message: fmt.Sprintf("%s %s", method, path), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &models.Error{Kind: models.KindNetwork, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return parseAPIError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &models.Error{Kind: models.KindExchange, Status: resp.StatusCode, Message: "failed to decode response", Err: err}
	}
	return nil
}

func parseAPIError(status int, body []byte) error {
	var ae apiError
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &ae); err == nil && ae.Msg != "" {
		msg = ae.Msg
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &models.Error{
		Kind:    classify(status, ae.Code),
		Status:  status,
		Code:    ae.Code,
		Message: msg,
	}
}

func classify(status int, code int64) models.ErrorKind {
	switch code {
	case -1003, -1015:
		return models.KindRateLimit
	case -1002, -1022, -2014, -2015:
		return models.KindAuth
	case -2011, -2013:
		return models.KindNotFound
	case -1001, -1007:
		return models.KindNetwork
	case -1013, -1111:
		return models.KindValidation
	}

	switch {
	case code <= -1100 && code >= -1199:
		return models.KindValidation
	case code <= -4000 && code >= -4999:
		return models.KindValidation
	}

	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return models.KindRateLimit
	case status == http.StatusUnauthorized:
		return models.KindAuth
	case status >= http.StatusInternalServerError:
		return models.KindNetwork
	}

	return models.KindExchange
}
