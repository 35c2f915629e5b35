package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/httpx"
	"github.com/dmitrijs2005/scalesync/internal/logging"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

// Hosts per account region. The CN account universe is fully separate from
// the global one; credentials are only valid on their own side.
const (
	ssoBaseGlobal = "https://sso.garmin.com"
	apiBaseGlobal = "https://connectapi.garmin.com"
	ssoBaseCN     = "https://sso.garmin.cn"
	apiBaseCN     = "https://connectapi.garmin.cn"
)

var ticketRe = regexp.MustCompile(`ticket=([^"']+)`)

// Session authenticates against the destination account once per run and
// performs uploads. Login failures are values, not errors: a user without
// working destination credentials is expected, recoverable input.
type Session struct {
	creds  models.GarminCredentials
	client *http.Client
	log    logging.Logger

	ssoBase string
	apiBase string

	accessToken string
	tokenExpiry time.Time
}

// NewSession builds an unauthenticated session for the credential set.
func NewSession(creds models.GarminCredentials, log logging.Logger) (*Session, error) {
	client, err := httpx.NewClient()
	if err != nil {
		return nil, err
	}

	s := &Session{creds: creds, client: client, log: log}
	if strings.EqualFold(creds.Domain, "CN") || creds.Domain == "" {
		s.ssoBase = ssoBaseCN
		s.apiBase = apiBaseCN
	} else {
		s.ssoBase = ssoBaseGlobal
		s.apiBase = apiBaseGlobal
	}
	return s, nil
}

// Active reports whether a usable access token is held.
func (s *Session) Active() bool {
	return s.accessToken != "" && time.Now().Before(s.tokenExpiry)
}

// Login establishes a session. It returns false — never an error — when the
// service rejects the credentials, so callers can skip the upload gracefully;
// the underlying cause goes to the diagnostic log.
func (s *Session) Login(ctx context.Context) bool {
	if err := s.login(ctx); err != nil {
		s.log.Error(ctx, "destination login failed", "error", err)
		return false
	}
	return true
}

func (s *Session) login(ctx context.Context) error {
	ticket, err := s.ssoSignin(ctx)
	if err != nil {
		return err
	}
	return s.exchangeToken(ctx, ticket)
}

// ssoSignin posts the credentials to the SSO endpoint and extracts the
// service ticket embedded in the response document.
func (s *Session) ssoSignin(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", s.creds.Email)
	form.Set("password", s.creds.Password)
	form.Set("embed", "false")
	encoded := form.Encode()

	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.ssoBase+"/sso/signin", strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: sso signin: %v", common.ErrLoginFailed, err)
	}

	body, err := httpx.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: sso signin: %v", common.ErrLoginFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: sso signin: %s", common.ErrLoginFailed, resp.Status)
	}

	m := ticketRe.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("%w: credentials rejected (no service ticket issued)", common.ErrLoginFailed)
	}
	return string(m[1]), nil
}

// oauthTokenReply is the token-exchange response.
type oauthTokenReply struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// exchangeToken trades the SSO ticket for an OAuth2 access token. Expiry is
// taken from the token's own claims when present (the token is a JWT), with
// expires_in as the fallback.
func (s *Session) exchangeToken(ctx context.Context, ticket string) error {
	form := url.Values{}
	form.Set("ticket", ticket)
	encoded := form.Encode()

	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.apiBase+"/oauth-service/oauth/exchange/user/2.0", strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%w: token exchange: %v", common.ErrLoginFailed, err)
	}

	body, err := httpx.ReadBody(resp)
	if err != nil {
		return fmt.Errorf("%w: token exchange: %v", common.ErrLoginFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token exchange: %s", common.ErrLoginFailed, resp.Status)
	}

	var reply oauthTokenReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("%w: token exchange: %v", common.ErrLoginFailed, err)
	}
	if reply.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", common.ErrLoginFailed)
	}

	s.accessToken = reply.AccessToken
	s.tokenExpiry = tokenExpiry(reply)
	return nil
}

// tokenExpiry prefers the JWT exp claim (no signature verification needed —
// the token is only inspected, never trusted as an authority) and falls back
// to expires_in, then to a conservative hour.
func tokenExpiry(reply oauthTokenReply) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(reply.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if reply.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(reply.ExpiresIn) * time.Second)
	}
	return time.Now().Add(time.Hour)
}
