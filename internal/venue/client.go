// Package venue implements the CLOB REST client: order submission,
// status polling, cancellation, balance/position reads, and book
// snapshots, plus the L1/L2 signing (auth.go) and per-category token
// bucket rate limiting (ratelimit.go) backing it.
//
// Order submission, order status, cancellation, and balance requests
// carry L2 HMAC headers; the book and positions reads are sent without
// auth. Book, order-status, order, and cancel requests draw from the
// rate limiter; balance and positions reads do not. Every request is
// retried on transport errors and 5xx via resty's built-in retry policy.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/config"
	"polymarket-arb/pkg/types"
)

// zeroAddress is the taker address for open orders anyone can fill.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// Client is the venue's CLOB REST API client.
type Client struct {
	http    *resty.Client
	auth    *Auth
	rl      *RateLimiter
	dryRun  bool
	negRisk bool
	logger  zerolog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(cfg.HTTP.RequestTimeout).
		SetTransport(&http.Transport{MaxIdleConnsPerHost: cfg.HTTP.PoolSize}).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		auth:    auth,
		rl:      NewRateLimiter(),
		dryRun:  cfg.DryRun,
		negRisk: true,
		logger:  logger.With().Str("component", "venue").Logger(),
	}
}

// GetBook fetches the one-sided ask/bid snapshot for a single token.
func (c *Client) GetBook(ctx context.Context, tokenID string) (*types.OutcomeBook, error) {
	if err := c.rl.Reads.Wait(ctx); err != nil {
		return nil, err
	}

	var wire bookWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&wire).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}

	return wire.toOutcomeBook(tokenID), nil
}

type bookWire struct {
	Bids []wireLevelPair `json:"bids"`
	Asks []wireLevelPair `json:"asks"`
}

type wireLevelPair struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (w bookWire) toOutcomeBook(tokenID string) *types.OutcomeBook {
	convert := func(levels []wireLevelPair) []types.PriceLevel {
		out := make([]types.PriceLevel, 0, len(levels))
		for _, lv := range levels {
			price, err := decimal.NewFromString(lv.Price)
			if err != nil {
				continue
			}
			size, err := decimal.NewFromString(lv.Size)
			if err != nil {
				continue
			}
			out = append(out, types.PriceLevel{Price: price, Size: size})
		}
		return out
	}
	return &types.OutcomeBook{
		TokenID:   tokenID,
		Bids:      convert(w.Bids),
		Asks:      convert(w.Asks),
		UpdatedAt: time.Now(),
	}
}

// GetBalance fetches the collateral balance in integer minor units (6
// decimals), converted to a human-readable decimal.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	headers, err := c.auth.L2Headers("GET", "/balance-allowance", "")
	if err != nil {
		return decimal.Zero, fmt.Errorf("l2 headers: %w", err)
	}

	var result struct {
		Balance string `json:"balance"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/balance-allowance")
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("get balance: status %d: %s", resp.StatusCode(), resp.String())
	}

	minorUnits, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}
	return minorUnits.Shift(-usdcDecimals), nil
}

// GetPositions fetches the current position list for the signer's
// address, optionally filtered by token id.
func (c *Client) GetPositions(ctx context.Context, tokenIDs ...string) ([]types.PositionInfo, error) {
	req := c.http.R().SetContext(ctx).SetQueryParam("address", c.auth.Address().Hex())
	if len(tokenIDs) > 0 {
		req.SetQueryParam("asset_ids", joinCSV(tokenIDs))
	}

	var result []types.PositionInfo
	resp, err := req.SetResult(&result).Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get positions: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

func joinCSV(items []string) string {
	out := items[0]
	for _, s := range items[1:] {
		out += "," + s
	}
	return out
}

// orderRequest is the wire shape for POST /order.
type orderRequest struct {
	TokenID       string `json:"token_id"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	FeeRateBps    string `json:"fee_rate_bps"`
	Nonce         string `json:"nonce"`
	Expiration    string `json:"expiration"`
	Taker         string `json:"taker"`
	Maker         string `json:"maker"`
	SignatureType int    `json:"signature_type"`
	Signature     string `json:"signature"`
	OrderType     string `json:"order_type"`
	NegRisk       bool   `json:"neg_risk"`
}

// SubmitOrder signs and posts a single order. It returns the venue's
// OrderState reply, tolerant of the field-name variants the venue is
// known to use across response shapes.
func (c *Client) SubmitOrder(ctx context.Context, params types.OrderParams) (types.OrderState, error) {
	if err := params.Validate(); err != nil {
		return types.OrderState{}, fmt.Errorf("invalid order params: %w", err)
	}

	if c.dryRun {
		c.logger.Info().Str("token_id", params.TokenID).Str("side", string(params.Side)).
			Str("price", params.Price.String()).Str("size", params.Size.String()).
			Msg("dry-run: simulating order submission")
		return types.OrderState{
			OrderID: fmt.Sprintf("dry-run-%d", time.Now().UnixNano()), HasStatus: true,
			Status: types.StatusFilled, FilledSize: params.Size, HasFilled: true,
			RemainingSize: decimal.Zero, HasRemaining: true,
			OriginalSize: params.Size, HasOriginal: true,
		}, nil
	}

	if err := c.rl.Orders.Wait(ctx); err != nil {
		return types.OrderState{}, err
	}

	makerAmt, takerAmt := PriceToAmounts(params.Price, params.Size, params.Side)
	nonce := time.Now().UnixMilli()
	expiration := time.Now().Add(time.Hour).Unix()

	req := orderRequest{
		TokenID:       params.TokenID,
		Side:          string(params.Side),
		Price:         params.Price.String(),
		Size:          params.Size.String(),
		FeeRateBps:    "0",
		Nonce:         fmt.Sprintf("%d", nonce),
		Expiration:    fmt.Sprintf("%d", expiration),
		Taker:         zeroAddress,
		Maker:         c.auth.FunderAddress().Hex(),
		SignatureType: int(c.auth.SignatureType()),
		OrderType:     orderTypeWire(params.TIF),
		NegRisk:       c.negRisk,
	}
	sig, err := c.auth.SignOrder(req.TokenID, req.Maker, req.Taker, makerAmt, takerAmt,
		nonce, expiration, params.Side)
	if err != nil {
		return types.OrderState{}, fmt.Errorf("sign order: %w", err)
	}
	req.Signature = sig

	body, err := json.Marshal(req)
	if err != nil {
		return types.OrderState{}, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/order", string(body))
	if err != nil {
		return types.OrderState{}, fmt.Errorf("l2 headers: %w", err)
	}

	var raw json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&raw).
		Post("/order")
	if err != nil {
		return types.OrderState{}, fmt.Errorf("submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return types.OrderState{}, fmt.Errorf("submit order: status %d: %s", resp.StatusCode(), resp.String())
	}

	return parseOrderState(raw)
}

// orderTypeWire maps FOK/FAK to the venue's two supported order types —
// the wire protocol only understands FOK and GTC; FAK is mapped to GTC
// at this boundary only, never inside the executor's own logic.
func orderTypeWire(tif types.TimeInForce) string {
	if tif == types.FOK {
		return "FOK"
	}
	return "GTC"
}

// GetOrderStatus polls the current state of a previously submitted
// order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (types.OrderState, error) {
	if err := c.rl.Reads.Wait(ctx); err != nil {
		return types.OrderState{}, err
	}

	headers, err := c.auth.L2Headers("GET", "/order/"+orderID, "")
	if err != nil {
		return types.OrderState{}, fmt.Errorf("l2 headers: %w", err)
	}

	var raw json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&raw).
		Get("/order/" + orderID)
	if err != nil {
		return types.OrderState{}, fmt.Errorf("get order status: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.OrderState{}, fmt.Errorf("get order status: status %d: %s", resp.StatusCode(), resp.String())
	}

	return parseOrderState(raw)
}

// CancelOrder cancels a single order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if c.dryRun {
		c.logger.Info().Str("order_id", orderID).Msg("dry-run: simulating cancel")
		return nil
	}
	if err := c.rl.Cancels.Wait(ctx); err != nil {
		return err
	}

	headers, err := c.auth.L2Headers("DELETE", "/order/"+orderID, "")
	if err != nil {
		return fmt.Errorf("l2 headers: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Delete("/order/" + orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelAll cancels every open order.
func (c *Client) CancelAll(ctx context.Context) error {
	if c.dryRun {
		c.logger.Info().Msg("dry-run: simulating cancel-all")
		return nil
	}
	if err := c.rl.Cancels.Wait(ctx); err != nil {
		return err
	}

	headers, err := c.auth.L2Headers("DELETE", "/cancel-all", "")
	if err != nil {
		return fmt.Errorf("l2 headers: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Delete("/cancel-all")
	if err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
	}
	c.logger.Warn().Msg("all orders cancelled")
	return nil
}
