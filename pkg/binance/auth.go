package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

const apiKeyHeader = "X-MBX-APIKEY"

// Signer signs request payloads with the account's API secret.
type Signer struct {
	apiKey    string
	apiSecret string
}

func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign returns the hex encoded HMAC-SHA256 of payload, which is the
// url-encoded query string including timestamp and recvWindow.
func (s *Signer) Sign(payload string) string {
	return computeHMAC(payload, s.apiSecret)
}

func (s *Signer) AddAuthHeaders(req *http.Request) {
	req.Header.Set(apiKeyHeader, s.apiKey)
}

func computeHMAC(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
