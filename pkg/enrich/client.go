// Package enrich generates short siting rationales for selected sites using
// the Anthropic API.
package enrich

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/siteselect/internal/retry"
	"github.com/sells-group/siteselect/internal/site"
)

// Client defines the enrichment operations used by the run command.
type Client interface {
	Rationale(ctx context.Context, c *site.Candidate) (string, error)
}

const systemPrompt = `You are a retail site-selection analyst. Given the scored
attributes of one proposed store location, write a single concise paragraph
(3-4 sentences) explaining why this location was selected. Mention population,
competitive gap, and anchor context where relevant. Do not invent numbers.`

// sdkClient implements Client using the official anthropic-sdk-go, with a
// client-side rate limiter so large selections do not hammer the API.
type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	retry     retry.Policy
}

// ClientOption configures the enrichment client.
type ClientOption func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) ClientOption {
	return func(c *sdkClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) ClientOption {
	return func(c *sdkClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sdkClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient creates an enrichment client backed by the SDK.
func NewClient(apiKey string, opts ...ClientOption) Client {
	c := &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
		model:     "claude-haiku-4-5-20251001",
		maxTokens: 512,
		limiter:   rate.NewLimiter(rate.Limit(2), 1),
		retry:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sdkClient) Rationale(ctx context.Context, cand *site.Candidate) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "enrich: rate limit wait")
	}

	msg, err := retry.Do(ctx, c.retry, "enrich.rationale", func(ctx context.Context) (*sdk.Message, error) {
		return c.client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(c.model),
			MaxTokens: c.maxTokens,
			System: []sdk.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(candidateBrief(cand))),
			},
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "enrich: rationale for %s", cand.ID)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// candidateBrief renders the scored attributes the model reasons over.
func candidateBrief(c *site.Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Location: %s (%s, region %s)\n", c.Name, c.SettlementType, c.RegionCode)
	fmt.Fprintf(&sb, "Population: %d (estimated: %v)\n", c.Population, c.PopulationEstimated)
	fmt.Fprintf(&sb, "Total score: %.3f (confidence %.2f)\n", c.Score.Total, c.Score.Confidence)
	fmt.Fprintf(&sb, "Sub-scores: population %.3f, gap %.3f, anchor %.3f, performance %.3f, saturation penalty %.3f\n",
		c.Score.Population, c.Score.Gap, c.Score.Anchor, c.Score.Performance, c.Score.SaturationPenalty)
	fmt.Fprintf(&sb, "Deduplicated anchors: %d\n", c.AnchorCount)
	fmt.Fprintf(&sb, "Existing stores within 5/10/15 km: %d/%d/%d\n",
		c.StoresWithin5KM, c.StoresWithin10KM, c.StoresWithin15KM)
	if len(c.NearestStoreDistances) > 0 {
		fmt.Fprintf(&sb, "Nearest store: %.1f km\n", c.NearestStoreDistances[0]/1000)
	} else {
		sb.WriteString("Nearest store: none in network\n")
	}
	return sb.String()
}

// Selection generates rationales for up to maxSites of the selected sites,
// keyed by site ID. Failures are logged and skipped rather than aborting the
// remaining sites.
func Selection(ctx context.Context, client Client, selected []*site.Candidate, maxSites int) map[string]string {
	if maxSites <= 0 || maxSites > len(selected) {
		maxSites = len(selected)
	}

	rationales := make(map[string]string, maxSites)
	for _, c := range selected[:maxSites] {
		text, err := client.Rationale(ctx, c)
		if err != nil {
			zap.L().Warn("enrich: rationale failed",
				zap.String("site_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		rationales[c.ID] = text
	}
	return rationales
}
