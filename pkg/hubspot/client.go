// Package hubspot provides the CRM boundary: exporting prospects that lack
// a persona and importing classified personas back as contact properties.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/persona-cli/internal/model"
	"github.com/sells-group/persona-cli/internal/resilience"
)

// Client defines the HubSpot operations used by the export and import
// commands.
type Client interface {
	// ListContactsMissingPersona pages through contacts whose persona
	// property is unset and returns them as prospects.
	ListContactsMissingPersona(ctx context.Context) ([]model.Prospect, error)
	// UpdatePersonas writes persona property values for the given contacts
	// in batches. Returns the number of contacts updated.
	UpdatePersonas(ctx context.Context, updates []PersonaUpdate) (int, error)
}

// PersonaUpdate sets the persona property for one contact.
type PersonaUpdate struct {
	ContactID string
	Persona   string
}

// contactProperties are fetched for every exported contact.
var contactProperties = []string{"hs_object_id", "email", "jobtitle", "firstname", "lastname", "company"}

const (
	personaProperty = "persona"
	batchLimit      = 100
)

// Option configures the HubSpot client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for HubSpot API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithPageSize sets the search page size (max 100).
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 && n <= 100 {
			c.pageSize = n
		}
	}
}

// WithPersonaMapping sets the persona label → property enum value mapping
// applied on import. Labels without a mapping are sent verbatim.
func WithPersonaMapping(mapping map[string]string) Option {
	return func(c *httpClient) {
		c.personaMapping = mapping
	}
}

type httpClient struct {
	readKey        string
	writeKey       string
	baseURL        string
	pageSize       int
	personaMapping map[string]string
	http           *http.Client
	limiter        *rate.Limiter
}

// NewClient creates a HubSpot client. readKey is used for exports,
// writeKey for persona imports; pass the same token for both when only one
// is provisioned.
func NewClient(readKey, writeKey string, opts ...Option) Client {
	c := &httpClient{
		readKey:  readKey,
		writeKey: writeKey,
		baseURL:  "https://api.hubapi.com",
		pageSize: 100,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- search (export) ---

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
}

type searchResponse struct {
	Total   int       `json:"total"`
	Results []contact `json:"results"`
	Paging  *paging   `json:"paging,omitempty"`
}

type contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type paging struct {
	Next struct {
		After string `json:"after"`
	} `json:"next"`
}

func (c *httpClient) ListContactsMissingPersona(ctx context.Context) ([]model.Prospect, error) {
	var prospects []model.Prospect
	after := ""

	for {
		req := searchRequest{
			FilterGroups: []filterGroup{{
				Filters: []filter{{PropertyName: personaProperty, Operator: "NOT_HAS_PROPERTY"}},
			}},
			Properties: contactProperties,
			Limit:      c.pageSize,
			After:      after,
		}

		var resp searchResponse
		if err := c.post(ctx, c.readKey, "/crm/v3/objects/contacts/search", req, &resp); err != nil {
			return nil, eris.Wrap(err, "hubspot: search contacts")
		}

		for _, ct := range resp.Results {
			prospects = append(prospects, model.Prospect{
				ID:        ct.ID,
				Email:     ct.Properties["email"],
				JobTitle:  ct.Properties["jobtitle"],
				FirstName: ct.Properties["firstname"],
				LastName:  ct.Properties["lastname"],
				Company:   ct.Properties["company"],
			})
		}

		if resp.Paging == nil || resp.Paging.Next.After == "" {
			break
		}
		after = resp.Paging.Next.After
	}

	return prospects, nil
}

// --- batch update (import) ---

type batchUpdateRequest struct {
	Inputs []batchUpdateInput `json:"inputs"`
}

type batchUpdateInput struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

func (c *httpClient) UpdatePersonas(ctx context.Context, updates []PersonaUpdate) (int, error) {
	updated := 0
	for start := 0; start < len(updates); start += batchLimit {
		end := min(start+batchLimit, len(updates))

		req := batchUpdateRequest{}
		for _, u := range updates[start:end] {
			req.Inputs = append(req.Inputs, batchUpdateInput{
				ID:         u.ContactID,
				Properties: map[string]string{personaProperty: c.mapPersona(u.Persona)},
			})
		}

		if err := c.post(ctx, c.writeKey, "/crm/v3/objects/contacts/batch/update", req, nil); err != nil {
			return updated, eris.Wrap(err, "hubspot: batch update")
		}
		updated += end - start
	}
	return updated, nil
}

// mapPersona translates a persona label to the CRM's enum value. HubSpot
// enum properties expect internal values like "persona_1", not labels.
func (c *httpClient) mapPersona(label string) string {
	if v, ok := c.personaMapping[label]; ok {
		return v
	}
	return label
}

// post sends an authenticated JSON request and decodes the response into
// out when non-nil. Transport and HTTP-status failures are mapped onto the
// resilience taxonomy so callers can wrap calls in the retry controller.
func (c *httpClient) post(ctx context.Context, key, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := eris.New(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(httpErr, resp.StatusCode)
		}
		return resilience.NewFatalError(httpErr, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
