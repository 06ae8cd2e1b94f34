package visit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// IPHasher turns client addresses into keyed one-way digests.
type IPHasher struct {
	secret []byte
}

func NewIPHasher(secret string) *IPHasher {
	return &IPHasher{secret: []byte(secret)}
}

// Hash returns the hex HMAC-SHA256 of ip.
func (h *IPHasher) Hash(ip string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
