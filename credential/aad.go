package credential

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AADConfig configures an Azure Active Directory credential.
type AADConfig struct {
	// IssuerURL is the tenant's OIDC issuer, e.g.
	// "https://login.microsoftonline.com/{tenant}/v2.0". The token endpoint
	// is discovered from it.
	IssuerURL string
	// ClientID and ClientSecret identify the service principal.
	ClientID     string
	ClientSecret string
	// Scopes requested for the access token.
	Scopes []string
	// RefreshSkew refreshes tokens this long before expiry. Default 2m.
	RefreshSkew time.Duration
}

// AAD authorizes requests with a bearer token obtained through the OAuth2
// client-credentials flow. Tokens are cached and refreshed shortly before
// they expire; when the access token is a JWT its exp claim is used as the
// authoritative expiry, since some issuers omit expires_in.
type AAD struct {
	fetch func() (*oauth2.Token, error)
	skew  time.Duration

	mu     sync.Mutex
	cached *oauth2.Token
	expiry time.Time
}

// NewAAD discovers the tenant's token endpoint and prepares a token source.
// No token is fetched until the first Authorize call.
func NewAAD(ctx context.Context, cfg AADConfig) (*AAD, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("credential: aad requires issuer, client id and client secret")
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("credential: aad discovery: %w", err)
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     provider.Endpoint().TokenURL,
		Scopes:       cfg.Scopes,
	}
	skew := cfg.RefreshSkew
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	// Fetch through cc.Token directly: the oauth2 reuse source would cache on
	// expires_in alone, and the JWT exp claim is the better refresh signal.
	return &AAD{fetch: func() (*oauth2.Token, error) { return cc.Token(ctx) }, skew: skew}, nil
}

// Authorize attaches the bearer token in the service's aad scheme.
func (a *AAD) Authorize(req *http.Request, verb, resourceType, resourceLink string) error {
	token, err := a.token()
	if err != nil {
		return fmt.Errorf("credential: aad token: %w", err)
	}
	date := strings.ToLower(time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set(headerDate, date)
	req.Header.Set(headerAuthorization, url.QueryEscape("type=aad&ver=1.0&sig="+token))
	return nil
}

func (a *AAD) token() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && time.Now().Before(a.expiry.Add(-a.skew)) {
		return a.cached.AccessToken, nil
	}
	token, err := a.fetch()
	if err != nil {
		return "", err
	}
	a.cached = token
	a.expiry = token.Expiry
	if exp, ok := jwtExpiry(token.AccessToken); ok {
		a.expiry = exp
	}
	if a.expiry.IsZero() {
		// No expiry information at all: do not cache.
		a.cached = nil
		return token.AccessToken, nil
	}
	return token.AccessToken, nil
}

// jwtExpiry extracts the exp claim without verifying the signature. The
// client is not the token's audience; it only needs a refresh hint.
func jwtExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
