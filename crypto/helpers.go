package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/iov-one/treasury"
)

// ExtensionName is used for the Conditions we get from signatures
const ExtensionName = "sigs"

// Signer is the functionality we use from a private key
// No serializing to support hardware devices as well.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() PublicKey
}

// RequestSignBytes returns the bytes a client signs to authenticate a
// request. The body is included as its sha256 digest. Sequence is the
// current sequence of the signer, each value is accepted only once.
func RequestSignBytes(method, path string, timestamp, sequence int64, body []byte) []byte {
	digest := sha256.Sum256(body)
	return []byte(fmt.Sprintf("%s\n%s\n%d\n%d\n%s", method, path, timestamp, sequence, hex.EncodeToString(digest[:])))
}

// Address is a shortcut returning the address of the signer.
func Address(s Signer) treasury.Address {
	return s.PublicKey().Condition().Address()
}
