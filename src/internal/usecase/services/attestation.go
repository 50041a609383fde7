package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Attest signs the identifying fields of an authorization so downstream
// consumers can verify it originated here.
func Attest(signingKey []byte, eventID, anchorType string, amount decimal.Decimal) string {
	mac := hmac.New(sha256.New, signingKey)
	fmt.Fprintf(mac, "%s|%s|%s", eventID, anchorType, amount.String())
	return hex.EncodeToString(mac.Sum(nil))
}

// ProofHash digests the issuer's proof; only the digest is persisted.
func ProofHash(proof string) string {
	sum := blake2b.Sum256([]byte(proof))
	return hex.EncodeToString(sum[:])
}
