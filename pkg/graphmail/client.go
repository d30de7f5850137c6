package graphmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/staffloop/intel-cli/internal/resilience"
)

// Options configures the Graph client.
type Options struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	RatePerSec   int
	Timeout      time.Duration
}

// Client talks to the provider over REST with client-credentials auth
// and a shared request pacer. It returns typed errors: 429 maps to a
// transient error carrying Retry-After, 401 to an auth-expiry error the
// caller resolves with InvalidateToken.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	mu       sync.Mutex
	ccConfig *clientcredentials.Config
	source   oauth2.TokenSource
}

// New creates a Client from the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       []string{opts.Scope},
	}
	return &Client{
		baseURL:  opts.BaseURL,
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec),
		ccConfig: cc,
	}
}

// InvalidateToken drops the cached token source. The next request
// acquires a fresh access token from the token endpoint.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = nil
}

// Validate acquires a token from the token endpoint without touching
// any mailbox. Run it before the first sync cycle so misconfigured
// credentials fail loudly instead of per folder.
func (c *Client) Validate(ctx context.Context) error {
	_, err := c.token(ctx)
	return err
}

func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	if c.source == nil {
		c.source = c.ccConfig.TokenSource(ctx)
	}
	src := c.source
	c.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return nil, eris.Wrap(err, "graphmail: acquire token")
	}
	return tok, nil
}

// get performs one authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "graphmail: rate limiter wait")
	}

	tok, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "graphmail: create request")
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if resilience.IsTransient(err) {
			return resilience.NewTransientError(eris.Wrap(err, "graphmail: request"), 0)
		}
		return eris.Wrap(err, "graphmail: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &resilience.AuthExpiredError{Err: eris.Errorf("graphmail: 401 from %s", rawURL)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return resilience.NewRateLimitError(
			eris.Errorf("graphmail: 429 from %s", rawURL), retryAfter(resp))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(
			eris.Errorf("graphmail: %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("graphmail: unexpected status %d from %s: %s", resp.StatusCode, rawURL, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "graphmail: decode response")
	}
	return nil
}

// retryAfter parses the Retry-After header, defaulting to 5s when the
// provider sent 429 without one.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

type folderList struct {
	Value    []Folder `json:"value"`
	NextLink string   `json:"@odata.nextLink"`
}

// ListFolders returns the mailbox's folders with at least one item,
// following pagination to the end.
func (c *Client) ListFolders(ctx context.Context, mailbox string) ([]Folder, error) {
	next := fmt.Sprintf("%s/users/%s/mailFolders?$top=100", c.baseURL, url.PathEscape(mailbox))

	var out []Folder
	for next != "" {
		var page folderList
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, f := range page.Value {
			if f.TotalItemCount > 0 {
				out = append(out, f)
			}
		}
		next = page.NextLink
	}
	return out, nil
}

type messageList struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// ListMessages fetches one page of a folder's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, mailbox, folderID, nextLink string, pageSize int) (*MessagePage, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	u := nextLink
	if u == "" {
		u = fmt.Sprintf(
			"%s/users/%s/mailFolders/%s/messages?$top=%d&$orderby=receivedDateTime%%20desc&$select=id,subject,bodyPreview,receivedDateTime,from",
			c.baseURL, url.PathEscape(mailbox), url.PathEscape(folderID), pageSize)
	}

	var page messageList
	if err := c.get(ctx, u, &page); err != nil {
		return nil, err
	}
	return &MessagePage{Messages: page.Value, NextLink: page.NextLink}, nil
}
