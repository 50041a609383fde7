package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAttest_DeterministicPerKeyAndFields(t *testing.T) {
	amount := decimal.RequireFromString("25.00")

	base := Attest([]byte("key-a"), "intent-1", "GROCERY", amount)
	require.Len(t, base, 64)
	require.Equal(t, base, Attest([]byte("key-a"), "intent-1", "GROCERY", amount))

	require.NotEqual(t, base, Attest([]byte("key-b"), "intent-1", "GROCERY", amount))
	require.NotEqual(t, base, Attest([]byte("key-a"), "intent-2", "GROCERY", amount))
	require.NotEqual(t, base, Attest([]byte("key-a"), "intent-1", "FUEL", amount))
	require.NotEqual(t, base, Attest([]byte("key-a"), "intent-1", "GROCERY", decimal.RequireFromString("25.01")))
}

func TestProofHash_DigestsProof(t *testing.T) {
	hash := ProofHash("issuer-proof-xyz")
	require.Len(t, hash, 64)
	require.Equal(t, hash, ProofHash("issuer-proof-xyz"))
	require.NotEqual(t, hash, ProofHash("issuer-proof-abc"))
}
