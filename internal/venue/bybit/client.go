// Package bybit is the live VenueGateway backed by the Bybit v5 P2P API.
package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"p2p-ad-bot/internal/api"
	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/types"
)

const (
	MainnetURL = "https://api.bybit.com"
	TestnetURL = "https://api-testnet.bybit.com"

	pathPersonalAds   = "/v5/p2p/item/personal/list"
	pathUpdateAd      = "/v5/p2p/item/update"
	pathPendingOrders = "/v5/p2p/order/pending/simplifyList"
	pathOrderInfo     = "/v5/p2p/order/info"
	pathOrderPay      = "/v5/p2p/order/pay"
	pathSendMessage   = "/v5/p2p/order/message/send"
	pathCoinBalance   = "/v5/asset/transfer/query-account-coins-balance"

	userAgent = "p2p-ad-bot/1.0"

	// Only online ads are reconciled
	statusOnline = "2"
	pageSize     = 50
)

// Params configures a Client. Zero values fall back to sane defaults.
type Params struct {
	APIKey             string
	APISecret          string
	Testnet            bool
	BaseURL            string
	RecvWindow         time.Duration
	Timeout            time.Duration
	RateLimitPerSecond int
	Coin               string
	Debug              bool
}

// Client implements interfaces.VenueGateway.
type Client struct {
	http *api.Client
	coin string
}

var _ interfaces.VenueGateway = (*Client)(nil)

func New(p Params) (*Client, error) {
	if p.APIKey == "" || p.APISecret == "" {
		return nil, &types.ConfigError{Field: "bybit", Reason: "api_key and api_secret are required"}
	}

	base := p.BaseURL
	if base == "" {
		base = MainnetURL
		if p.Testnet {
			base = TestnetURL
		}
	}
	if p.RecvWindow <= 0 {
		p.RecvWindow = 5 * time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.Coin == "" {
		p.Coin = "USDT"
	}

	return &Client{
		http: api.NewClient(
			api.WithBaseURL(strings.TrimRight(base, "/")),
			api.WithTimeout(p.Timeout),
			api.WithHeader("User-Agent", userAgent),
			api.WithSigner(newSigner(p.APIKey, p.APISecret, p.RecvWindow)),
			api.WithRateLimit(p.RateLimitPerSecond),
			api.WithLogging(p.Debug),
		),
		coin: p.Coin,
	}, nil
}

func (c *Client) ListOffers(ctx context.Context, side types.Side) ([]types.LiveOffer, error) {
	const op = "listOffers"
	body := map[string]string{
		"status": statusOnline,
		"side":   strconv.Itoa(int(side)),
		"page":   "1",
		"size":   strconv.Itoa(pageSize),
	}

	var res itemsResult[rawAd]
	if err := c.call(ctx, op, func() (*api.Response, error) { return c.http.POST(ctx, pathPersonalAds, body) }, &res); err != nil {
		return nil, err
	}

	// A malformed ad is dropped; the others are still reconciled
	offers := make([]types.LiveOffer, 0, len(res.Items))
	for _, item := range res.Items {
		o, err := item.normalize()
		if err != nil {
			logger.Warn(ctx, "Skipping malformed ad", "ad_id", item.id(), "side", side.String(), "error", err)
			continue
		}
		offers = append(offers, o)
	}
	return offers, nil
}

func (c *Client) UpdateOffer(ctx context.Context, u types.OfferUpdate) error {
	req := newUpdateAdRequest(u)
	return c.call(ctx, "updateOffer", func() (*api.Response, error) { return c.http.POST(ctx, pathUpdateAd, req) }, nil)
}

func (c *Client) ListPendingOrders(ctx context.Context) ([]types.Order, error) {
	const op = "listPendingOrders"
	body := map[string]int{"page": 1, "size": pageSize}

	var res itemsResult[rawOrder]
	if err := c.call(ctx, op, func() (*api.Response, error) { return c.http.POST(ctx, pathPendingOrders, body) }, &res); err != nil {
		return nil, err
	}

	// An order with unreadable fields is kept so it still gets greeted;
	// SideUnknown keeps it out of the payment step
	orders := make([]types.Order, 0, len(res.Items))
	for _, item := range res.Items {
		o, err := item.normalize()
		if err != nil {
			logger.Warn(ctx, "Pending order has malformed fields", "order_id", o.ID, "side", o.Side.String(), "error", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *Client) GetOrderDetail(ctx context.Context, orderID string) (types.OrderDetail, error) {
	const op = "getOrderDetail"
	body := map[string]string{"orderId": orderID}

	var res rawOrderDetail
	if err := c.call(ctx, op, func() (*api.Response, error) { return c.http.POST(ctx, pathOrderInfo, body) }, &res); err != nil {
		return types.OrderDetail{}, err
	}
	detail, err := res.normalize()
	if err != nil {
		logger.Warn(ctx, "Order detail has malformed fields", "order_id", orderID, "error", err)
	}
	if detail.ID == "" {
		detail.ID = orderID
	}
	return detail, nil
}

func (c *Client) MarkAsPaid(ctx context.Context, orderID, paymentType, paymentID string) error {
	body := map[string]string{
		"orderId":     orderID,
		"paymentType": paymentType,
		"paymentId":   paymentID,
	}
	return c.call(ctx, "markAsPaid", func() (*api.Response, error) { return c.http.POST(ctx, pathOrderPay, body) }, nil)
}

func (c *Client) GetBalance(ctx context.Context, accountType string) (types.Balance, error) {
	const op = "getBalance"
	q := url.Values{}
	q.Set("accountType", accountType)
	q.Set("coin", c.coin)

	var res rawBalance
	if err := c.call(ctx, op, func() (*api.Response, error) { return c.http.GET(ctx, pathCoinBalance, q) }, &res); err != nil {
		return types.Balance{}, err
	}
	bal, err := res.normalize(c.coin)
	if err != nil {
		return types.Balance{}, &types.ExchangeAPIError{Op: op, Message: "malformed balance", Err: err}
	}
	return bal, nil
}

func (c *Client) SendMessage(ctx context.Context, orderID, text string) error {
	body := map[string]string{
		"message":     text,
		"contentType": "str",
		"orderId":     orderID,
		"msgUuid":     uuid.NewString(),
	}
	err := c.call(ctx, "sendMessage", func() (*api.Response, error) { return c.http.POST(ctx, pathSendMessage, body) }, nil)
	if err != nil {
		return &types.NotificationError{OrderID: orderID, Err: err}
	}
	return nil
}

// call runs one request and decodes the envelope. A non-zero return code,
// a transport failure and an HTTP error status all become ExchangeAPIError.
func (c *Client) call(ctx context.Context, op string, do func() (*api.Response, error), out any) error {
	resp, err := do()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) {
			return &types.ExchangeAPIError{Op: op, Code: httpErr.StatusCode, Message: httpErr.Body, Err: err}
		}
		return &types.ExchangeAPIError{Op: op, Message: "request failed", Err: err}
	}

	var env envelope
	if err := resp.ParseJSON(&env); err != nil {
		return &types.ExchangeAPIError{Op: op, Message: "malformed response", Err: err}
	}
	if code := env.code(); code != 0 {
		return &types.ExchangeAPIError{Op: op, Code: code, Message: env.message()}
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &types.ExchangeAPIError{Op: op, Message: "malformed result", Err: fmt.Errorf("decode %s result: %w", op, err)}
	}
	return nil
}
