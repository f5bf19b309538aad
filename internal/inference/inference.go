// Package inference implements the RelationInferrer port: batched LLM
// calls that propose logical relations ("implies", "mutually_exclusive",
// "exactly_one", "linear") between related markets, which internal/cluster
// then compiles into precomputed constraints.
//
// The wire contract is a single JSON object back from the model:
//
//	{"relations": [{"type": "...", ..., "confidence": 0.9, "reasoning": "..."}]}
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// RelationInferrer is the port the orchestrator depends on.
type RelationInferrer interface {
	Infer(ctx context.Context, markets []domain.Market) ([]domain.Relation, error)
}

// relationDTO is the JSON shape of one relation in the model's response.
// Exactly one of the type-specific field groups is populated, selected by
// Type.
type relationDTO struct {
	Type       string    `json:"type"`
	IfYes      string    `json:"if_yes,omitempty"`
	ThenYes    string    `json:"then_yes,omitempty"`
	Markets    []string  `json:"markets,omitempty"`
	Terms      []termDTO `json:"terms,omitempty"`
	Sense      string    `json:"sense,omitempty"`
	RHS        float64   `json:"rhs,omitempty"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
}

type termDTO struct {
	MarketID    string  `json:"market_id"`
	Coefficient float64 `json:"coefficient"`
}

type responseDTO struct {
	Relations []relationDTO `json:"relations"`
}

// ttl is how long an inferred relation is trusted before it must be
// re-inferred; the same horizon the cluster cache's CacheTTL uses to
// decide a cluster is stale.
const ttl = time.Hour

// decodeRelations converts the model's JSON response into domain
// relations stamped with now/now+ttl. Relations with an unrecognized type
// or missing market fields are skipped rather than failing the whole
// batch — a single malformed relation shouldn't discard an otherwise-useful
// inference pass. Market references are not checked against the markets
// the caller asked about.
func decodeRelations(raw []byte, now time.Time, logger *slog.Logger) ([]domain.Relation, error) {
	var resp responseDTO
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode relation response: %w", err)
	}

	out := make([]domain.Relation, 0, len(resp.Relations))
	for _, r := range resp.Relations {
		kind, ok := decodeKind(r)
		if !ok {
			logger.Warn("inference: skipping relation with unrecognized shape", "type", r.Type)
			continue
		}
		out = append(out, domain.Relation{
			ID:         ids.NewRelationId(),
			Kind:       kind,
			Confidence: clamp01(r.Confidence),
			Reasoning:  r.Reasoning,
			InferredAt: now,
			ExpiresAt:  now.Add(ttl),
		})
	}
	return out, nil
}

func decodeKind(r relationDTO) (domain.RelationKind, bool) {
	switch strings.ToLower(r.Type) {
	case "implies":
		if r.IfYes == "" || r.ThenYes == "" {
			return nil, false
		}
		return domain.Implies{IfYes: ids.MarketId(r.IfYes), ThenYes: ids.MarketId(r.ThenYes)}, true

	case "mutually_exclusive":
		if len(r.Markets) < 2 {
			return nil, false
		}
		return domain.MutuallyExclusive{Markets: toMarketIds(r.Markets)}, true

	case "exactly_one":
		if len(r.Markets) < 2 {
			return nil, false
		}
		return domain.ExactlyOne{Markets: toMarketIds(r.Markets)}, true

	case "linear":
		if len(r.Terms) == 0 {
			return nil, false
		}
		terms := make([]domain.LinearTerm, len(r.Terms))
		for i, t := range r.Terms {
			terms[i] = domain.LinearTerm{MarketID: ids.MarketId(t.MarketID), Coefficient: t.Coefficient}
		}
		sense, ok := decodeSense(r.Sense)
		if !ok {
			return nil, false
		}
		return domain.Linear{Terms: terms, Sense: sense, RHS: r.RHS}, true

	default:
		return nil, false
	}
}

func decodeSense(s string) (domain.Sense, bool) {
	switch s {
	case "le", "<=":
		return domain.SenseLessEqual, true
	case "ge", ">=":
		return domain.SenseGreaterEqual, true
	case "eq", "==", "=":
		return domain.SenseEqual, true
	default:
		return 0, false
	}
}

func toMarketIds(raw []string) []ids.MarketId {
	out := make([]ids.MarketId, len(raw))
	for i, s := range raw {
		out[i] = ids.MarketId(s)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LLMClient is the minimal surface inference needs from a provider SDK —
// a single prompt/response round trip. Kept deliberately thin so swapping
// providers (OpenAI, Anthropic, a local model server) never touches the
// decoding logic above.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// HTTPClient is an LLMClient backed by a generic chat-completions style
// HTTP endpoint.
type HTTPClient struct {
	http  *resty.Client
	model string
}

// NewHTTPClient builds an HTTPClient pointed at baseURL (the provider's
// chat-completions endpoint) carrying an API key as a bearer token.
func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration) *HTTPClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey)
	return &HTTPClient{http: c, model: model}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	var resp chatResponse
	r, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0.2,
			MaxTokens:   2048,
		}).
		SetResult(&resp).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	if r.StatusCode() != 200 {
		return "", fmt.Errorf("llm request: status %d", r.StatusCode())
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm request: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// LLMInferrer implements RelationInferrer by prompting an LLMClient with
// a batch of markets and decoding its JSON reply.
type LLMInferrer struct {
	client LLMClient
	logger *slog.Logger
}

// NewLLMInferrer builds an inferrer over the given client.
func NewLLMInferrer(client LLMClient, logger *slog.Logger) *LLMInferrer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMInferrer{client: client, logger: logger.With("component", "inference")}
}

// NewFromConfig constructs an LLMInferrer backed by an HTTPClient
// configured from cfg.Inference, or nil if inference is disabled.
func NewFromConfig(cfg config.InferenceConfig, baseURL, apiKey string, logger *slog.Logger) *LLMInferrer {
	if !cfg.Enabled {
		return nil
	}
	timeout := 30 * time.Second
	client := NewHTTPClient(baseURL, apiKey, cfg.Model, timeout)
	return NewLLMInferrer(client, logger)
}

// Infer prompts the LLM with markets and decodes its relation response.
func (i *LLMInferrer) Infer(ctx context.Context, markets []domain.Market) ([]domain.Relation, error) {
	if len(markets) < 2 {
		return nil, nil
	}
	prompt := buildPrompt(markets)
	raw, err := i.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("infer relations: %w", err)
	}
	return decodeRelations([]byte(raw), time.Now(), i.logger)
}

// buildPrompt renders the batch of markets into the schema instruction
// the model must answer against.
func buildPrompt(markets []domain.Market) string {
	var sb strings.Builder
	sb.WriteString("Identify logical relationships between these prediction markets. ")
	sb.WriteString("Respond with a single JSON object: ")
	sb.WriteString(`{"relations": [{"type": "implies|mutually_exclusive|exactly_one|linear", ` +
		`"if_yes": "...", "then_yes": "...", "markets": ["..."], ` +
		`"terms": [{"market_id": "...", "coefficient": 0}], "sense": "le|ge|eq", "rhs": 0, ` +
		`"confidence": 0.0, "reasoning": "..."}]}. `)
	sb.WriteString("Only include fields relevant to the relation's type. Markets:\n")
	for _, m := range markets {
		fmt.Fprintf(&sb, "- %s: %s\n", m.MarketID, m.Question)
	}
	return sb.String()
}
