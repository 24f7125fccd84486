package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
)

// Signer turns a canonical string into the digest an exchange expects.
// Implementations are pure functions of (secret, canonical): the same input
// always yields the same digest. The canonical string construction is the
// caller's responsibility and must match the venue's documentation byte for
// byte, since the venue recomputes and compares the result.
type Signer interface {
	Sign(canonical string) string
}

// HMACSHA256Hex is the Binance-family scheme: hex-encoded HMAC-SHA256 over
// the encoded query string.
type HMACSHA256Hex struct {
	Secret string
}

func (s HMACSHA256Hex) Sign(canonical string) string {
	h := hmac.New(sha256.New, []byte(s.Secret))
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// HMACSHA256Base64 is the OKX-family scheme: base64-encoded HMAC-SHA256 over
// timestamp + method + requestPath + body.
type HMACSHA256Base64 struct {
	Secret string
}

func (s HMACSHA256Base64) Sign(canonical string) string {
	h := hmac.New(sha256.New, []byte(s.Secret))
	h.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// HMACSHA512HexBase64 is the Bithumb scheme: HMAC-SHA512 over a NUL-delimited
// endpoint/query/nonce string, hex-encoded, then base64-encoded again.
type HMACSHA512HexBase64 struct {
	Secret string
}

func (s HMACSHA512HexBase64) Sign(canonical string) string {
	h := hmac.New(sha512.New, []byte(s.Secret))
	h.Write([]byte(canonical))
	hexDigest := hex.EncodeToString(h.Sum(nil))
	return base64.StdEncoding.EncodeToString([]byte(hexDigest))
}
