// Package external contains the HTTP clients for the outside services the
// analysis pipeline consults: the openFDA drug-label API, the cloud
// generative endpoint, and the on-device model runtime. Clients are wrapped
// with circuit breakers by ResilientClient.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/mediguard-server/internal/domain"
)

// labelSectionOrder is the fixed ordered list of label fields extracted into
// a snippet. Order is part of the snippet contract.
var labelSectionOrder = []string{
	"warnings",
	"warnings_and_cautions",
	"contraindications",
	"precautions",
	"drug_interactions",
	"adverse_reactions",
	"indications_and_usage",
}

// DrugLabelClient handles interactions with the openFDA drug-label API.
type DrugLabelClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDrugLabelClient creates a new drug-label API client.
func NewDrugLabelClient(config domain.DrugLabelConfig) *DrugLabelClient {
	rl := config.RateLimit
	if rl <= 0 {
		rl = 1
	}
	return &DrugLabelClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rl), 1),
	}
}

// labelSearchResponse represents the JSON response of a label search.
type labelSearchResponse struct {
	Results []map[string]json.RawMessage `json:"results"`
}

// Lookup queries the label API for a drug name using the two-pass strategy:
// first a quoted exact-phrase match over the brand and generic name fields,
// then an unquoted loose match. The first attempt returning at least one
// record wins. A nil snippet with a nil error means no label evidence.
func (c *DrugLabelClient) Lookup(ctx context.Context, drug string) (*domain.LabelSnippet, error) {
	queries := []string{
		c.searchURL(fmt.Sprintf("%q", drug)),
		c.searchURL(drug),
	}

	var record map[string]json.RawMessage
	var lastErr error
	for _, u := range queries {
		rec, err := c.fetchFirstRecord(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		if rec != nil {
			record = rec
			break
		}
	}
	if record == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("drug label lookup failed: %w", lastErr)
		}
		return nil, nil
	}

	return buildSnippet(record), nil
}

// searchURL builds a label search URL for one query term. The term is used
// for both the brand-name and generic-name fields; the '+' joining them is
// openFDA query syntax, not URL encoding.
func (c *DrugLabelClient) searchURL(term string) string {
	q := url.QueryEscape(term)
	u := fmt.Sprintf("%s?search=openfda.brand_name:%s+openfda.generic_name:%s&limit=1", c.baseURL, q, q)
	if c.apiKey != "" {
		u += "&api_key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// fetchFirstRecord performs one search attempt and returns the first result
// record, or nil when the attempt found nothing.
func (c *DrugLabelClient) fetchFirstRecord(ctx context.Context, fullURL string) (map[string]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create label search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute label search request: %w", err)
	}
	defer resp.Body.Close()

	// openFDA answers 404 for an empty result set; that is "not found",
	// not a failure.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("label search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read label search response: %w", err)
	}

	var searchResponse labelSearchResponse
	if err := json.Unmarshal(body, &searchResponse); err != nil {
		return nil, fmt.Errorf("failed to parse label search response: %w", err)
	}
	if len(searchResponse.Results) == 0 {
		return nil, nil
	}
	return searchResponse.Results[0], nil
}

// buildSnippet extracts the fixed section list from one label record. Only
// the first array element of each section is taken. Returns nil when no
// section and no description yields text, so callers never see a partially
// assembled snippet.
func buildSnippet(record map[string]json.RawMessage) *domain.LabelSnippet {
	sections := make(map[string]string, len(labelSectionOrder))
	var parts []string
	for _, name := range labelSectionOrder {
		text := firstValue(record, name)
		if text == "" {
			continue
		}
		sections[name] = text
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ReplaceAll(name, "_", " "), text))
	}

	combined := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if combined == "" {
		desc := firstValue(record, "description")
		if desc == "" {
			return nil
		}
		sections["description"] = desc
		combined = desc
	}

	return &domain.LabelSnippet{
		RawSections:  sections,
		CombinedText: combined,
	}
}

// firstValue returns the first array element of a label field, or "".
func firstValue(record map[string]json.RawMessage, field string) string {
	raw, ok := record[field]
	if !ok {
		return ""
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
