package treasurytest

import (
	"testing"

	"github.com/iov-one/treasury"
)

// ParseAddress takes an address in a human readable format and returns
// its binary representation. This function is a test helper that is using
// treasury.ParseAddress function functionality.
func ParseAddress(t testing.TB, encodedAddress string) treasury.Address {
	t.Helper()

	addr, err := treasury.ParseAddress(encodedAddress)
	if err != nil {
		t.Fatalf("cannot parse %q address: %s", encodedAddress, err)
	}
	return addr
}

// SequenceAddress returns an address derived from the given sequence value.
// Addresses created this way are stable between test runs.
func SequenceAddress(n uint64) treasury.Address {
	return treasury.NewCondition("test", "seq", treasury.NewAddress([]byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	})).Address()
}
