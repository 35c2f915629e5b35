package xiaomi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// Data-API requests are signed with a nonce derived from the current minute
// and the session's ssecurity. The service rejects stale or unsigned calls.

// makeNonce returns a 12-byte nonce: 8 random bytes plus the big-endian
// minute counter, base64-encoded.
func makeNonce(now time.Time) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf[:8]); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	binary.BigEndian.PutUint32(buf[8:], uint32(now.Unix()/60))
	return base64.StdEncoding.EncodeToString(buf), nil
}

// signedNonce binds the nonce to the session secret:
// base64(sha256(ssecurity || nonce)).
func signedNonce(ssecurity, nonce string) (string, error) {
	sec, err := base64.StdEncoding.DecodeString(ssecurity)
	if err != nil {
		return "", fmt.Errorf("decode ssecurity: %w", err)
	}
	n, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}

	h := sha256.New()
	h.Write(sec)
	h.Write(n)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// signRequest produces the request signature:
// base64(hmac-sha256(key=signedNonce, msg=path&signedNonce&nonce&data=...)).
func signRequest(path, snonce, nonce, data string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(snonce)
	if err != nil {
		return "", fmt.Errorf("decode signed nonce: %w", err)
	}

	msg := path + "&" + snonce + "&" + nonce + "&data=" + data
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
