// Package discovery resolves the currently tradeable 15-minute BTC
// up/down market: its slug, UP/DOWN token ids, and open/close window. It
// is a thin poller over the Gamma markets API, not a ranking engine —
// there is only ever one market to pick.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"polymarket-arb/internal/config"
	"polymarket-arb/pkg/types"
)

// slugPrefix identifies the recurring 15-minute BTC up/down market
// family on the Gamma API; every live instance's slug starts with it.
const slugPrefix = "btc-up-or-down-15m"

// gammaMarket is the subset of the Gamma API's market JSON this package
// needs: slug, open/close timestamps, and the JSON-encoded token id pair.
type gammaMarket struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Question        string `json:"question"`
	Active          bool   `json:"active"`
	Closed          bool   `json:"closed"`
	AcceptingOrders bool   `json:"acceptingOrders"`
	EnableOrderBook bool   `json:"enableOrderBook"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	ClobTokenIds    string `json:"clobTokenIds"`
}

// Discoverer polls the Gamma markets API to resolve the current market.
type Discoverer struct {
	http       *resty.Client
	forcedSlug string
	logger     zerolog.Logger
}

// New builds a Discoverer pointed at the Gamma API's default base URL.
// cfg.Market.ForcedSlug, if set, pins discovery to one specific slug
// instead of searching the live slug family — useful for testing against
// a known market.
func New(cfg config.Config, logger zerolog.Logger) *Discoverer {
	client := resty.New().
		SetBaseURL("https://gamma-api.polymarket.com").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Discoverer{
		http:       client,
		forcedSlug: cfg.Market.ForcedSlug,
		logger:     logger.With().Str("component", "discovery").Logger(),
	}
}

// errNoMarket means no eligible market was found in the current poll.
type errNoMarket struct{ detail string }

func (e *errNoMarket) Error() string { return "no eligible market: " + e.detail }

// IsNoMarket reports whether err was returned because no eligible
// market currently exists (as opposed to a transport failure).
func IsNoMarket(err error) bool {
	_, ok := err.(*errNoMarket)
	return ok
}

// Current resolves the nearest open market: if ForcedSlug is set, fetches
// that slug directly; otherwise lists active markets in the slug family
// and picks the one with the soonest close time that hasn't closed yet.
func (d *Discoverer) Current(ctx context.Context) (types.Market, error) {
	if d.forcedSlug != "" {
		gm, err := d.fetchBySlug(ctx, d.forcedSlug)
		if err != nil {
			return types.Market{}, err
		}
		return toMarket(gm)
	}

	candidates, err := d.fetchActive(ctx)
	if err != nil {
		return types.Market{}, err
	}

	eligible := make([]gammaMarket, 0, len(candidates))
	now := time.Now()
	for _, gm := range candidates {
		if !gm.Active || gm.Closed || !gm.AcceptingOrders || !gm.EnableOrderBook {
			continue
		}
		if !strings.HasPrefix(gm.Slug, slugPrefix) {
			continue
		}
		end, err := time.Parse(time.RFC3339, gm.EndDate)
		if err != nil || !end.After(now) {
			continue
		}
		eligible = append(eligible, gm)
	}

	if len(eligible) == 0 {
		return types.Market{}, &errNoMarket{detail: fmt.Sprintf("no active %s market", slugPrefix)}
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].EndDate < eligible[j].EndDate
	})

	return toMarket(eligible[0])
}

func (d *Discoverer) fetchBySlug(ctx context.Context, slug string) (gammaMarket, error) {
	var page []gammaMarket
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&page).
		Get("/markets")
	if err != nil {
		return gammaMarket{}, fmt.Errorf("fetch market %q: %w", slug, err)
	}
	if resp.StatusCode() != 200 {
		return gammaMarket{}, fmt.Errorf("fetch market %q: status %d", slug, resp.StatusCode())
	}
	if len(page) == 0 {
		return gammaMarket{}, &errNoMarket{detail: fmt.Sprintf("slug %q not found", slug)}
	}
	return page[0], nil
}

func (d *Discoverer) fetchActive(ctx context.Context) ([]gammaMarket, error) {
	var page []gammaMarket
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"active":    "true",
			"closed":    "false",
			"limit":     "100",
			"order":     "endDate",
			"ascending": "true",
		}).
		SetResult(&page).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("fetch active markets: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch active markets: status %d", resp.StatusCode())
	}
	return page, nil
}

func toMarket(gm gammaMarket) (types.Market, error) {
	var tokenIDs []string
	if gm.ClobTokenIds != "" {
		if err := json.Unmarshal([]byte(gm.ClobTokenIds), &tokenIDs); err != nil {
			return types.Market{}, fmt.Errorf("parse clobTokenIds for %q: %w", gm.Slug, err)
		}
	}
	if len(tokenIDs) < 2 {
		return types.Market{}, fmt.Errorf("market %q has fewer than 2 outcome tokens", gm.Slug)
	}

	start, _ := time.Parse(time.RFC3339, gm.StartDate)
	end, err := time.Parse(time.RFC3339, gm.EndDate)
	if err != nil {
		return types.Market{}, fmt.Errorf("parse endDate for %q: %w", gm.Slug, err)
	}

	return types.Market{
		ID:           gm.ID,
		Slug:         gm.Slug,
		UpTokenID:    tokenIDs[0],
		DownTokenID:  tokenIDs[1],
		OpenUnixSec:  start.Unix(),
		CloseUnixSec: end.Unix(),
		Question:     gm.Question,
	}, nil
}
