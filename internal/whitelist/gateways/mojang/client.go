// Package mojang implements the external name-resolution collaborator: an
// HTTP client against the Mojang profile API that maps a display name to the
// account's stable identifier.
package mojang

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
)

const defaultBaseURL = "https://api.mojang.com"

// Options configures the profile client.
type Options struct {
	// BaseURL overrides the API endpoint, e.g. for tests.
	BaseURL string
	// Timeout applies when the caller's context has no deadline.
	Timeout time.Duration
	// HTTPClient can be injected for testing.
	HTTPClient *http.Client
	// Logger defaults to the global logger.
	Logger log.Logger
}

// Client looks up profiles over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  log.Logger
}

// New creates a profile client. Defaults: Mojang's public API and a five
// second timeout.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Client{
		baseURL: opts.BaseURL,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
}

// profileResponse is the wire shape of a profile lookup. The id is an
// undashed hex UUID.
type profileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FindByName resolves a display name against the profile API. A 204 or 404
// means the name has no account and reports a miss, not an error.
func (c *Client) FindByName(ctx context.Context, name string) (domain.Profile, bool, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL + "/users/profiles/minecraft/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("building profile request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("profile lookup for %q: %w", name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNoContent, http.StatusNotFound:
		return domain.Profile{}, false, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return domain.Profile{}, false, fmt.Errorf("profile lookup for %q: unexpected status %d", name, resp.StatusCode)
	}

	var pr profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.Profile{}, false, fmt.Errorf("decoding profile for %q: %w", name, err)
	}
	id, err := domain.ParseIdentifier(pr.ID)
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("parsing profile id for %q: %w", name, err)
	}
	c.logger.Debug(map[string]any{"name": pr.Name, "id": id.String()}, "resolved profile")
	return domain.Profile{ID: id, Name: pr.Name}, true, nil
}
