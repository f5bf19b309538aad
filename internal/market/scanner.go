// Package market discovers tradeable prediction markets from Polymarket's
// Gamma API and converts them into the domain model the rest of the
// system operates on.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/exchange"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/money"
)

// GammaMarket is the JSON shape returned by the Gamma API. Outcomes,
// OutcomePrices, and ClobTokenIds are themselves JSON arrays encoded as
// strings; a market can carry any number of outcomes, not just two, so a
// single GammaMarket may convert into either a binary or an N-outcome
// domain.Market.
type GammaMarket struct {
	ID                    string  `json:"id"`
	Question              string  `json:"question"`
	ConditionID           string  `json:"conditionId"`
	Slug                  string  `json:"slug"`
	Active                bool    `json:"active"`
	Closed                bool    `json:"closed"`
	AcceptingOrders       bool    `json:"acceptingOrders"`
	EnableOrderBook       bool    `json:"enableOrderBook"`
	EndDate               string  `json:"endDate"`
	Liquidity             string  `json:"liquidity"`
	Volume24hr            float64 `json:"volume24hr"`
	Outcomes              string  `json:"outcomes"`
	OutcomePrices         string  `json:"outcomePrices"`
	ClobTokenIds          string  `json:"clobTokenIds"`
	NegRisk               bool    `json:"negRisk"`
	Spread                float64 `json:"spread"`
	BestBid               float64 `json:"bestBid"`
	BestAsk               float64 `json:"bestAsk"`
	LastTradePrice        float64 `json:"lastTradePrice"`
	OrderPriceMinTickSize float64 `json:"orderPriceMinTickSize"`
	OrderMinSize          float64 `json:"orderMinSize"`
	RewardsMinSize        float64 `json:"rewardsMinSize"`
	RewardsMaxSpread      float64 `json:"rewardsMaxSpread"`
}

// DiscoveredMarket pairs a converted domain.Market with the score factors
// the subscription manager's priority queue ranks it by. Factors.Opportunity
// is left zero here; it is filled in downstream once a stats recorder has
// accumulated a hit-rate for the market.
type DiscoveredMarket struct {
	Market  domain.Market
	Factors domain.ScoreFactors
}

// ScanResult is one completed scan: every market that passed the filters,
// ranked best-first by raw opportunity score.
type ScanResult struct {
	Markets   []DiscoveredMarket
	ScannedAt time.Time
}

// Scanner implements the MarketFetcher port by periodically polling the
// Gamma API, filtering out untradeable markets, and ranking survivors by
//
//	score = spread × √(volume24h) × min(liquidity/10000, 1)
//
// High-spread, high-volume, reasonably liquid markets score highest.
type Scanner struct {
	httpClient *resty.Client          // HTTP client pointed at the Gamma API
	rl         *exchange.TokenBucket  // Gamma API rate limit (shared category across the module)
	cfg        config.ScannerConfig   // filter thresholds + poll interval
	logger     *slog.Logger
	resultCh   chan ScanResult

	statsMu sync.Mutex
	stats   Stats
}

// Stats is a point-in-time summary of the scanner's most recent pass, read
// by the dashboard.
type Stats struct {
	LastScanAt time.Time
	Scanned    int
	Filtered   int
	Discovered int
}

// NewScanner creates a market scanner against cfg.API.GammaBaseURL.
func NewScanner(cfg config.Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(cfg.API.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	rlCfg := cfg.RateLimit.WithDefaults().Gamma
	return &Scanner{
		httpClient: client,
		rl:         exchange.NewTokenBucket(rlCfg.Capacity, rlCfg.RatePerSec),
		cfg:        cfg.Scanner,
		logger:     logger.With("component", "scanner"),
		resultCh:   make(chan ScanResult, 1),
	}
}

// Results returns the channel callers read completed scans from.
func (s *Scanner) Results() <-chan ScanResult {
	return s.resultCh
}

// Stats returns a snapshot of the most recently completed scan, for the
// dashboard.
func (s *Scanner) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Run starts the polling loop. Blocks until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	s.scan(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// FetchMarkets runs one scan synchronously and returns the result,
// without touching the Results() channel. Callers that want the discovery
// loop's output on demand (rather than polling) use this directly.
func (s *Scanner) FetchMarkets(ctx context.Context) ([]DiscoveredMarket, error) {
	raw, err := s.fetchMarkets(ctx)
	if err != nil {
		return nil, err
	}
	ranked := s.rankMarkets(s.filterMarkets(raw))
	return s.buildDiscovered(ranked), nil
}

func (s *Scanner) scan(ctx context.Context) {
	raw, err := s.fetchMarkets(ctx)
	if err != nil {
		s.logger.Error("scan failed", "error", err)
		return
	}

	filtered := s.filterMarkets(raw)
	ranked := s.rankMarkets(filtered)
	discovered := s.buildDiscovered(ranked)

	result := ScanResult{Markets: discovered, ScannedAt: time.Now()}

	s.statsMu.Lock()
	s.stats = Stats{LastScanAt: result.ScannedAt, Scanned: len(raw), Filtered: len(filtered), Discovered: len(discovered)}
	s.statsMu.Unlock()

	s.logger.Info("scan complete",
		"total", len(raw),
		"filtered", len(filtered),
		"discovered", len(discovered),
	)

	select {
	case s.resultCh <- result:
	default:
		select {
		case <-s.resultCh:
		default:
		}
		s.resultCh <- result
	}
}

func (s *Scanner) fetchMarkets(ctx context.Context) ([]GammaMarket, error) {
	var allMarkets []GammaMarket
	offset := 0
	limit := 100

	for {
		if err := s.rl.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gamma rate limit: %w", err)
		}

		var page []GammaMarket
		resp, err := s.httpClient.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit":  strconv.Itoa(limit),
				"offset": strconv.Itoa(offset),
				"active": "true",
				"closed": "false",
			}).
			SetResult(&page).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("fetch markets page %d: %w", offset, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("fetch markets: status %d", resp.StatusCode())
		}

		allMarkets = append(allMarkets, page...)

		if len(page) < limit {
			break
		}
		offset += limit
	}

	return allMarkets, nil
}

// filterMarkets applies hard filters to eliminate unsuitable markets:
// inactive, closed, not accepting orders, no order book, excluded slugs,
// insufficient liquidity/volume/spread, end date already past or too far
// out, missing token IDs.
func (s *Scanner) filterMarkets(markets []GammaMarket) []GammaMarket {
	excluded := make(map[string]bool, len(s.cfg.ExcludeSlugs))
	for _, slug := range s.cfg.ExcludeSlugs {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if slug != "" {
			excluded[slug] = true
		}
	}

	now := time.Now()
	maxEnd := now.AddDate(0, 0, s.cfg.MaxEndDateDays)

	var result []GammaMarket
	for _, m := range markets {
		if !m.Active || m.Closed || !m.AcceptingOrders || !m.EnableOrderBook {
			continue
		}
		if excluded[strings.ToLower(m.Slug)] {
			continue
		}

		liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)
		if liquidity < s.cfg.MinLiquidity {
			continue
		}
		if m.Volume24hr < s.cfg.MinVolume24h {
			continue
		}
		if m.Spread < s.cfg.MinSpread {
			continue
		}

		if m.EndDate != "" {
			endDate, err := time.Parse(time.RFC3339, m.EndDate)
			if err != nil {
				continue
			}
			if endDate.Before(now) || endDate.After(maxEnd) {
				continue
			}
		}

		if m.ClobTokenIds == "" {
			continue
		}

		result = append(result, m)
	}

	return result
}

type rankedMarket struct {
	market GammaMarket
	score  float64
}

// rankMarkets scores and sorts markets by opportunity quality.
// score = spread × √volume × liquidityFactor, where liquidityFactor is
// capped at 1.0 (10k USD liquidity saturates the bonus).
func (s *Scanner) rankMarkets(markets []GammaMarket) []rankedMarket {
	scored := make([]rankedMarket, len(markets))
	for i, m := range markets {
		liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)
		liquidityFactor := math.Min(liquidity/10000.0, 1.0)
		score := m.Spread * math.Sqrt(m.Volume24hr) * liquidityFactor
		scored[i] = rankedMarket{market: m, score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	return scored
}

// buildDiscovered converts ranked Gamma markets into domain.Market values
// with their score factors. Markets whose outcome/token-id arrays fail to
// parse or don't line up are skipped rather than guessed at.
func (s *Scanner) buildDiscovered(ranked []rankedMarket) []DiscoveredMarket {
	out := make([]DiscoveredMarket, 0, len(ranked))
	for _, rm := range ranked {
		mkt, ok := convertToMarket(rm.market)
		if !ok {
			continue
		}
		liquidity, _ := strconv.ParseFloat(rm.market.Liquidity, 64)
		out = append(out, DiscoveredMarket{
			Market: mkt,
			Factors: domain.ScoreFactors{
				Liquidity:    math.Min(liquidity/10000.0, 1.0),
				Spread:       math.Min(rm.market.Spread/0.10, 1.0),
				OutcomeCount: math.Min(float64(len(mkt.Outcomes))/10.0, 1.0),
				Activity:     math.Min(rm.market.Volume24hr/50000.0, 1.0),
			},
		})
	}
	return out
}

// convertToMarket builds a domain.Market from a Gamma market, zipping its
// JSON-encoded outcome names against its JSON-encoded CLOB token IDs. Both
// fields are generic arrays: a market may carry two outcomes (binary) or
// many (multi-outcome), and this performs no special-casing between the
// two. Every Polymarket condition pays out exactly $1 split across its
// outcomes, so Payout is always 1.
func convertToMarket(gm GammaMarket) (domain.Market, bool) {
	var tokenIDs []string
	if err := parseJSONArray(gm.ClobTokenIds, &tokenIDs); err != nil || len(tokenIDs) < 2 {
		return domain.Market{}, false
	}

	var names []string
	if err := parseJSONArray(gm.Outcomes, &names); err != nil || len(names) != len(tokenIDs) {
		names = make([]string, len(tokenIDs))
		for i := range names {
			names[i] = fmt.Sprintf("Outcome %d", i+1)
		}
	}

	marketID := gm.ConditionID
	if marketID == "" {
		marketID = gm.ID
	}

	outcomes := make([]domain.Outcome, len(tokenIDs))
	for i, tok := range tokenIDs {
		outcomes[i] = domain.Outcome{TokenID: ids.TokenId(tok), Name: names[i]}
	}

	mkt := domain.Market{
		MarketID: ids.MarketId(marketID),
		Question: gm.Question,
		Outcomes: outcomes,
		Payout:   money.FromFloat(1.0),
	}
	if err := mkt.Validate(); err != nil {
		return domain.Market{}, false
	}
	return mkt, true
}

// parseJSONArray parses a JSON array string into a string slice.
func parseJSONArray(s string, out *[]string) error {
	return json.Unmarshal([]byte(s), out)
}
