package xiaomi

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/httpx"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

// InteractiveLogin performs a full credential login and returns fresh session
// material for persistence. This is the bootstrap path; routine runs use
// ValidateOrRefresh with the cached token instead.
//
// The password is consumed and should be wiped by the caller.
func (s *Session) InteractiveLogin(ctx context.Context, password []byte) (*models.SourceToken, error) {
	sign, err := s.fetchLoginSign(ctx)
	if err != nil {
		return nil, err
	}

	reply, err := s.credentialLogin(ctx, sign, password)
	if err != nil {
		return nil, err
	}
	if reply.Code != 0 {
		return nil, fmt.Errorf("%w: %s (code %d)", common.ErrLoginFailed, reply.Description, reply.Code)
	}
	if reply.Location == "" {
		return nil, fmt.Errorf("%w: no session location issued", common.ErrLoginFailed)
	}

	s.applyReply(reply)
	if err := s.collectServiceToken(ctx, reply.Location); err != nil {
		return nil, err
	}

	if !s.token.Complete() {
		return nil, fmt.Errorf("%w: incomplete session material issued", common.ErrLoginFailed)
	}
	tok := s.token
	return &tok, nil
}

// fetchLoginSign obtains the anti-forgery _sign value that must accompany a
// credential login.
func (s *Session) fetchLoginSign(ctx context.Context) (string, error) {
	url := s.accountBase + "/pass/serviceLogin?sid=" + serviceID + "&_json=true"

	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	})
	if err != nil {
		return "", fmt.Errorf("%w: login sign: %v", common.ErrLoginFailed, err)
	}
	body, err := httpx.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: login sign: %v", common.ErrLoginFailed, err)
	}

	reply, err := parseServiceLoginReply(body)
	if err != nil {
		return "", fmt.Errorf("%w: login sign: %v", common.ErrLoginFailed, err)
	}
	return reply.Sign, nil
}

// credentialLogin posts username and hashed password to the auth endpoint.
// The account API takes an uppercase hex MD5 of the password, a contract
// fixed by the service, not a choice of ours.
func (s *Session) credentialLogin(ctx context.Context, sign string, password []byte) (*serviceLoginReply, error) {
	sum := md5.Sum(password)
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))

	form := url.Values{}
	form.Set("user", s.username)
	form.Set("hash", hash)
	form.Set("sid", serviceID)
	form.Set("_sign", sign)
	form.Set("_json", "true")
	encoded := form.Encode()

	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.accountBase+"/pass/serviceLoginAuth2", strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLoginFailed, err)
	}
	body, err := httpx.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLoginFailed, err)
	}

	reply, err := parseServiceLoginReply(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLoginFailed, err)
	}
	return reply, nil
}
