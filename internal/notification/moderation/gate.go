// Package moderation screens notification content through the GenAI gateway.
package moderation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"loyalty-notify/internal/common/errors"
	commonhttp "loyalty-notify/internal/common/http"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/common/metrics"
	"loyalty-notify/internal/common/validation"
	"loyalty-notify/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const cacheKeyPrefix = "notify:moderation:"

var verdictSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["isApproved", "reasons", "severity"],
	"properties": {
		"isApproved": {"type": "boolean"},
		"reasons": {"type": "array", "items": {"type": "string"}},
		"severity": {"type": "string", "enum": ["low", "medium", "high"]}
	}
}`)

const policyPrompt = `You are a content moderator for a loyalty rewards program.
Businesses send push notifications to their program members.

Approve content about promotions, discounts, rewards, points, new products,
opening hours, events and other commerce or loyalty-program topics.

Reject content that is sexual, hateful, harassing, threatening, spam or
deceptive, or that is off-topic for a loyalty program (including political
campaigning).

Answer with JSON only, no prose, in exactly this shape:
{"isApproved": true|false, "reasons": ["..."], "severity": "low"|"medium"|"high"}`

// Gate is the content moderation gate. It fails closed: every outcome is
// either a verdict or an error.
type Gate struct {
	config  Config
	client  *commonhttp.Client
	cache   *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
}

// NewGate builds a gate. cache may be nil to disable verdict caching.
// errGatewayCredentials marks a 401/403 from the gateway. It is a
// configuration problem, so it does not count against the breaker.
var errGatewayCredentials = stderrors.New("genai gateway rejected credentials")

func NewGate(cfg Config, cache *redis.Client, log logger.Logger) *Gate {
	return &Gate{
		config: cfg,
		client: commonhttp.NewClient(cfg.Timeout),
		cache:  cache,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "genai-moderation",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || stderrors.Is(err, errGatewayCredentials)
			},
		}),
		logger: logger.ForComponent(log, "moderation-gate"),
	}
}

// Moderate classifies a title/body pair against the content policy.
func (g *Gate) Moderate(ctx context.Context, title, body string) (*models.ModerationVerdict, error) {
	if !g.config.configured() {
		metrics.ModerationVerdicts.WithLabelValues("error").Inc()
		return nil, errors.NewModerationNotConfiguredError("moderation.base_url and moderation.api_key are required")
	}

	key := cacheKey(title, body)
	if verdict := g.cached(ctx, key); verdict != nil {
		return verdict, nil
	}

	raw, err := g.breaker.Execute(func() (interface{}, error) {
		return g.call(ctx, title, body)
	})
	if err != nil {
		metrics.ModerationVerdicts.WithLabelValues("error").Inc()
		if stderrors.Is(err, errGatewayCredentials) {
			g.logger.Error("moderation gateway rejected credentials", map[string]interface{}{"error": err})
			return nil, errors.NewModerationNotConfiguredError(err.Error())
		}
		g.logger.Warn("moderation call failed", map[string]interface{}{"error": err})
		return nil, errors.NewModerationUnavailableError(err)
	}

	verdict, err := parseVerdict(raw.([]byte))
	if err != nil {
		metrics.ModerationVerdicts.WithLabelValues("error").Inc()
		g.logger.Warn("malformed moderation response", map[string]interface{}{"error": err})
		return nil, errors.NewModerationMalformedError(err.Error())
	}

	g.store(ctx, key, verdict)

	label := "rejected"
	if verdict.IsApproved {
		label = "approved"
	}
	metrics.ModerationVerdicts.WithLabelValues(label).Inc()
	g.logger.Info("moderation verdict", map[string]interface{}{
		"approved": verdict.IsApproved,
		"severity": string(verdict.Severity),
	})
	return verdict, nil
}

func (g *Gate) call(ctx context.Context, title, body string) ([]byte, error) {
	content, _ := json.Marshal(models.NotificationDraft{Title: title, Body: body})

	request := map[string]interface{}{
		"prompt":      policyPrompt + "\n\nNotification:\n" + string(content),
		"max_tokens":  g.config.MaxTokens,
		"temperature": g.config.Temperature,
	}
	if g.config.Model != "" {
		request["model"] = g.config.Model
	}

	resp, err := g.client.PostJSON(ctx, strings.TrimSuffix(g.config.BaseURL, "/")+"/api/ai/generate",
		map[string]string{"Authorization": "Bearer " + g.config.APIKey}, request)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", errGatewayCredentials, resp.StatusCode)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("genai gateway returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// parseVerdict unwraps the gateway's {"text": ...} envelope and validates the
// classifier output against verdictSchema.
func parseVerdict(raw []byte) (*models.ModerationVerdict, error) {
	var envelope struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	doc := extractJSONObject(envelope.Text)
	if doc == "" {
		return nil, fmt.Errorf("classifier output contains no JSON object")
	}

	result, err := verdictSchema.ValidateJSON([]byte(doc))
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Field+": "+e.Message)
		}
		return nil, fmt.Errorf("verdict does not match schema: %s", strings.Join(msgs, "; "))
	}

	var verdict models.ModerationVerdict
	if err := json.Unmarshal([]byte(doc), &verdict); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	if verdict.Reasons == nil {
		verdict.Reasons = []string{}
	}
	return &verdict, nil
}

// extractJSONObject strips markdown fences and surrounding prose.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

func cacheKey(title, body string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + body))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (g *Gate) cached(ctx context.Context, key string) *models.ModerationVerdict {
	if g.cache == nil {
		return nil
	}
	data, err := g.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			g.logger.Warn("moderation cache read failed", map[string]interface{}{"error": err})
		}
		return nil
	}

	var verdict models.ModerationVerdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return nil
	}
	return &verdict
}

func (g *Gate) store(ctx context.Context, key string, verdict *models.ModerationVerdict) {
	if g.cache == nil || g.config.CacheTTL <= 0 {
		return
	}
	data, _ := json.Marshal(verdict)
	if err := g.cache.Set(ctx, key, data, g.config.CacheTTL).Err(); err != nil {
		g.logger.Warn("moderation cache write failed", map[string]interface{}{"error": err})
	}
}
