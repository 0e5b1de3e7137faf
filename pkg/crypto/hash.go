package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
)

// MD5 hashes the concatenation of parts
func MD5(parts ...[]byte) []byte {
	h := md5.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// MD5String hashes data and returns the lowercase hex digest
func MD5String(data []byte) string {
	return hex.EncodeToString(MD5(data))
}

// HMACMD5 computes a keyed MD5 over message
func HMACMD5(key, message []byte) []byte {
	mac := hmac.New(md5.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// GenerateNonce generates a random nonce
func GenerateNonce(size int) ([]byte, error) {
	nonce := make([]byte, size)
	_, err := rand.Read(nonce)
	if err != nil {
		return nil, err
	}
	return nonce, nil
}

// VerifyHash verifies an MD5 digest matches the data
func VerifyHash(data []byte, expectedHash []byte) bool {
	return hmac.Equal(MD5(data), expectedHash)
}
