// Package xiaomi implements the source-account session: validating or
// refreshing a cached session token against the account service and fetching
// body-composition measurements from the device-data API.
//
// The cached token carries three persisted fields (userId, passToken,
// ssecurity). Each run revalidates it; the account service may roll the
// session forward and issue new material, which the caller persists. The
// short-lived serviceToken obtained during validation authorizes data calls
// and is never written to disk.
package xiaomi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/httpx"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

const (
	defaultAccountBase = "https://account.xiaomi.com"
	defaultAPIBase     = "https://api.io.mi.com/app"

	serviceID = "xiaomiio"

	// The account service prefixes JSON bodies with this guard string.
	jsonGuardPrefix = "&&&START&&&"
)

// Session drives the source account's authentication lifecycle for one user.
type Session struct {
	username string
	token    models.SourceToken
	client   *http.Client

	// Endpoint bases are variable for tests.
	accountBase string
	apiBase     string
}

// NewSession builds a session around the cached token. No network traffic
// happens until ValidateOrRefresh.
func NewSession(username string, token models.SourceToken) (*Session, error) {
	client, err := httpx.NewClient()
	if err != nil {
		return nil, err
	}
	return &Session{
		username:    username,
		token:       token,
		client:      client,
		accountBase: defaultAccountBase,
		apiBase:     defaultAPIBase,
	}, nil
}

// Token returns the session material currently in use.
func (s *Session) Token() models.SourceToken {
	return s.token
}

// serviceLoginReply is the account service's response envelope for both
// token validation and credential login.
type serviceLoginReply struct {
	Code        int         `json:"code"`
	Description string      `json:"desc"`
	UserID      json.Number `json:"userId"`
	SSecurity   string      `json:"ssecurity"`
	PassToken   string      `json:"passToken"`
	Location    string      `json:"location"`
	Sign        string      `json:"_sign"`
}

// ValidateOrRefresh authenticates with the cached token. When the account
// service rolls the session forward it returns the refreshed token for
// persistence; when the cached material is still current it returns nil. A
// rejected token yields common.ErrSessionExpired.
func (s *Session) ValidateOrRefresh(ctx context.Context) (*models.SourceToken, error) {
	if !s.token.Complete() {
		return nil, fmt.Errorf("%w: incomplete cached token", common.ErrSessionExpired)
	}

	reply, err := s.serviceLogin(ctx)
	if err != nil {
		return nil, err
	}
	if reply.Code != 0 {
		return nil, fmt.Errorf("%w: %s (code %d)", common.ErrSessionExpired, reply.Description, reply.Code)
	}
	if reply.Location == "" {
		return nil, fmt.Errorf("%w: account service returned no session location", common.ErrSessionExpired)
	}

	if err := s.collectServiceToken(ctx, reply.Location); err != nil {
		return nil, err
	}

	refreshed := s.applyReply(reply)
	if !refreshed {
		return nil, nil
	}
	tok := s.token
	return &tok, nil
}

// serviceLogin performs the cookie-authenticated login probe.
func (s *Session) serviceLogin(ctx context.Context) (*serviceLoginReply, error) {
	url := s.accountBase + "/pass/serviceLogin?sid=" + serviceID + "&_json=true"

	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.AddCookie(&http.Cookie{Name: "userId", Value: s.token.UserID})
		req.AddCookie(&http.Cookie{Name: "passToken", Value: s.token.PassToken})
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: service login: %v", common.ErrSessionExpired, err)
	}

	body, err := httpx.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: service login: %v", common.ErrSessionExpired, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service login: %s", common.ErrSessionExpired, resp.Status)
	}

	return parseServiceLoginReply(body)
}

func parseServiceLoginReply(body []byte) (*serviceLoginReply, error) {
	text := strings.TrimPrefix(strings.TrimSpace(string(body)), jsonGuardPrefix)

	var reply serviceLoginReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed account reply: %v", common.ErrSessionExpired, err)
	}
	return &reply, nil
}

// collectServiceToken follows the post-login location; the account service
// answers with a serviceToken cookie that authorizes data-API calls.
func (s *Session) collectServiceToken(ctx context.Context, location string) error {
	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, location, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: session exchange: %v", common.ErrSessionExpired, err)
	}
	if _, err := httpx.ReadBody(resp); err != nil {
		return fmt.Errorf("%w: session exchange: %v", common.ErrSessionExpired, err)
	}

	for _, c := range resp.Cookies() {
		if c.Name == "serviceToken" && c.Value != "" {
			s.token.ServiceToken = c.Value
			return nil
		}
	}
	return fmt.Errorf("%w: no serviceToken issued", common.ErrSessionExpired)
}

// applyReply folds refreshed session material into the live token and
// reports whether any persisted field changed.
func (s *Session) applyReply(reply *serviceLoginReply) bool {
	changed := false
	if v := reply.UserID.String(); v != "" && v != "0" && v != s.token.UserID {
		s.token.UserID = v
		changed = true
	}
	if reply.PassToken != "" && reply.PassToken != s.token.PassToken {
		s.token.PassToken = reply.PassToken
		changed = true
	}
	if reply.SSecurity != "" && reply.SSecurity != s.token.SSecurity {
		s.token.SSecurity = reply.SSecurity
		changed = true
	}
	return changed
}
