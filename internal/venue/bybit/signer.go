package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

// signer implements the v5 HMAC scheme:
// sign = hex(HMAC_SHA256(secret, timestamp + apiKey + recvWindow + payload)).
type signer struct {
	apiKey     string
	secret     []byte
	recvWindow string
	now        func() time.Time
}

func newSigner(apiKey, secret string, recvWindow time.Duration) *signer {
	return &signer{
		apiKey:     apiKey,
		secret:     []byte(secret),
		recvWindow: strconv.FormatInt(recvWindow.Milliseconds(), 10),
		now:        time.Now,
	}
}

func (s *signer) sign(timestamp string, payload []byte) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(timestamp))
	h.Write([]byte(s.apiKey))
	h.Write([]byte(s.recvWindow))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *signer) Sign(req *http.Request, payload []byte) error {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	req.Header.Set("X-BAPI-API-KEY", s.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", s.recvWindow)
	req.Header.Set("X-BAPI-SIGN-TYPE", "2")
	req.Header.Set("X-BAPI-SIGN", s.sign(ts, payload))
	return nil
}
