package notify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lanceworks/autobid-cli/internal/model"
)

// maxRelayErrBody bounds how much of a gateway error response is kept.
const maxRelayErrBody = 512

// RelayChannel delivers messages through an HTTP gateway that relays to a
// messaging service. The gateway contract is a GET with phone, text and
// apikey query parameters; any 2xx response counts as accepted.
type RelayChannel struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// RelayOption configures the relay channel.
type RelayOption func(*RelayChannel)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) RelayOption {
	return func(c *RelayChannel) {
		c.http = hc
	}
}

// NewRelayChannel creates a relay channel for the given gateway.
func NewRelayChannel(baseURL, apiKey string, opts ...RelayOption) *RelayChannel {
	c := &RelayChannel{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name implements Channel.
func (c *RelayChannel) Name() string { return "relay" }

// Send implements Channel.
func (c *RelayChannel) Send(ctx context.Context, recipient model.Recipient, message string) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return eris.Wrapf(err, "relay: parse gateway url %q", c.baseURL)
	}

	q := u.Query()
	q.Set("phone", recipient.Handle)
	q.Set("text", message)
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return eris.Wrap(err, "relay: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "relay: send request")
	}
	defer resp.Body.Close() //nolint:errcheck
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRelayErrBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("relay: gateway returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
