// Package openpayments is the HTTP client for Open Payments wallet address, authorization
// (GNAP) and resource servers.
package openpayments

import (
	"context"
	"net/http"
	"strings"
	"time"

	httpclient "github.com/cyphera/grantpay/internal/client/http"
	"github.com/pkg/errors"
)

// WalletClient resolves wallet address documents.
type WalletClient interface {
	GetWalletAddress(ctx context.Context, walletURL string) (*WalletAddress, error)
}

// AuthClient talks GNAP to authorization servers.
type AuthClient interface {
	RequestGrant(ctx context.Context, authServerURL string, req GrantRequest) (*GrantResponse, error)
	ContinueGrant(ctx context.Context, continueURI, continueToken, interactRef string) (*GrantResponse, error)
	RotateToken(ctx context.Context, manageURL, accessToken string) (*AccessToken, error)
	RevokeToken(ctx context.Context, manageURL, accessToken string) error
}

// ResourceClient creates payment resources on resource servers.
type ResourceClient interface {
	CreateIncomingPayment(ctx context.Context, resourceServerURL, accessToken string, req IncomingPaymentRequest) (*IncomingPayment, error)
	CreateQuote(ctx context.Context, resourceServerURL, accessToken string, req QuoteRequest) (*Quote, error)
	CreateOutgoingPayment(ctx context.Context, resourceServerURL, accessToken string, req OutgoingPaymentRequest) (*OutgoingPayment, error)
}

// Config configures the Open Payments client.
type Config struct {
	Signer        *httpclient.Signer
	Timeout       time.Duration
	WalletRetries int
	// Transport overrides the underlying round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Client implements WalletClient, AuthClient and ResourceClient. Wallet lookups are idempotent
// reads and may be retried; GNAP and resource calls are never retried here.
type Client struct {
	wallets *httpclient.HTTPClient
	gnap    *httpclient.HTTPClient
}

// NewClient creates an Open Payments client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	common := []httpclient.ClientOption{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithMiddleware(httpclient.CorrelationMiddleware()),
		httpclient.WithMiddleware(httpclient.LoggingMiddleware()),
	}
	walletOpts := append([]httpclient.ClientOption{}, common...)
	gnapOpts := append([]httpclient.ClientOption{}, common...)
	if cfg.Transport != nil {
		walletOpts = append([]httpclient.ClientOption{httpclient.WithTransport(cfg.Transport)}, walletOpts...)
		gnapOpts = append([]httpclient.ClientOption{httpclient.WithTransport(cfg.Transport)}, gnapOpts...)
	}
	if cfg.WalletRetries > 0 {
		retry := httpclient.DefaultRetryConfig()
		retry.MaxRetries = cfg.WalletRetries
		walletOpts = append(walletOpts, httpclient.WithRetryConfig(retry))
	}
	if cfg.Signer != nil {
		gnapOpts = append(gnapOpts, httpclient.WithMiddleware(httpclient.SigningMiddleware(cfg.Signer)))
	}

	return &Client{
		wallets: httpclient.NewHTTPClient(walletOpts...),
		gnap:    httpclient.NewHTTPClient(gnapOpts...),
	}
}

func (c *Client) GetWalletAddress(ctx context.Context, walletURL string) (*WalletAddress, error) {
	var wallet WalletAddress
	if err := c.wallets.DoJSON(ctx, http.MethodGet, walletURL, nil, &wallet); err != nil {
		return nil, errors.Wrapf(err, "get wallet address %s", walletURL)
	}
	return &wallet, nil
}

func (c *Client) RequestGrant(ctx context.Context, authServerURL string, req GrantRequest) (*GrantResponse, error) {
	var resp GrantResponse
	if err := c.gnap.DoJSON(ctx, http.MethodPost, authServerURL, req, &resp); err != nil {
		return nil, errors.Wrap(err, "request grant")
	}
	return &resp, nil
}

func (c *Client) ContinueGrant(ctx context.Context, continueURI, continueToken, interactRef string) (*GrantResponse, error) {
	var resp GrantResponse
	err := c.gnap.DoJSON(ctx, http.MethodPost, continueURI, continueRequest{InteractRef: interactRef}, &resp,
		httpclient.WithGNAPToken(continueToken))
	if err != nil {
		return nil, errors.Wrap(err, "continue grant")
	}
	return &resp, nil
}

func (c *Client) RotateToken(ctx context.Context, manageURL, accessToken string) (*AccessToken, error) {
	var resp tokenResponse
	err := c.gnap.DoJSON(ctx, http.MethodPost, manageURL, nil, &resp, httpclient.WithGNAPToken(accessToken))
	if err != nil {
		return nil, errors.Wrap(err, "rotate token")
	}
	if resp.AccessToken == nil || resp.AccessToken.Value == "" {
		return nil, errors.New("rotate token: response carried no access token")
	}
	return resp.AccessToken, nil
}

func (c *Client) RevokeToken(ctx context.Context, manageURL, accessToken string) error {
	err := c.gnap.DoJSON(ctx, http.MethodDelete, manageURL, nil, nil, httpclient.WithGNAPToken(accessToken))
	return errors.Wrap(err, "revoke token")
}

func (c *Client) CreateIncomingPayment(ctx context.Context, resourceServerURL, accessToken string, req IncomingPaymentRequest) (*IncomingPayment, error) {
	var payment IncomingPayment
	err := c.gnap.DoJSON(ctx, http.MethodPost, joinURL(resourceServerURL, "incoming-payments"), req, &payment,
		httpclient.WithGNAPToken(accessToken))
	if err != nil {
		return nil, errors.Wrap(err, "create incoming payment")
	}
	return &payment, nil
}

func (c *Client) CreateQuote(ctx context.Context, resourceServerURL, accessToken string, req QuoteRequest) (*Quote, error) {
	var quote Quote
	err := c.gnap.DoJSON(ctx, http.MethodPost, joinURL(resourceServerURL, "quotes"), req, &quote,
		httpclient.WithGNAPToken(accessToken))
	if err != nil {
		return nil, errors.Wrap(err, "create quote")
	}
	return &quote, nil
}

func (c *Client) CreateOutgoingPayment(ctx context.Context, resourceServerURL, accessToken string, req OutgoingPaymentRequest) (*OutgoingPayment, error) {
	var payment OutgoingPayment
	err := c.gnap.DoJSON(ctx, http.MethodPost, joinURL(resourceServerURL, "outgoing-payments"), req, &payment,
		httpclient.WithGNAPToken(accessToken))
	if err != nil {
		return nil, errors.Wrap(err, "create outgoing payment")
	}
	return &payment, nil
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + path
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsInsufficientGrant reports whether err is a resource server rejection caused by the grant's
// remaining limits.
func IsInsufficientGrant(err error) bool {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.StatusCode == http.StatusForbidden {
		return true
	}
	body := strings.ToLower(httpErr.Body)
	return strings.Contains(body, "insufficient") || strings.Contains(body, "limit")
}
