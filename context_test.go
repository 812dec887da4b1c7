package treasury

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendermint/tendermint/libs/log"
)

func TestLogger(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, DefaultLogger, GetLogger(ctx))

	var buf bytes.Buffer
	logger := log.NewTMLogger(log.NewSyncWriter(&buf))
	ctx = WithLogger(ctx, logger)
	ctx = WithLogInfo(ctx, "vault", "abc")

	GetLogger(ctx).Info("approved", "transfer", 1)
	out := buf.String()
	assert.Contains(t, out, "approved")
	assert.Contains(t, out, "vault=abc")
	assert.Contains(t, out, "transfer=1")
}

func TestCtxAuth(t *testing.T) {
	a := NewCondition("sigs", "ed25519", []byte{1})
	b := NewCondition("sigs", "ed25519", []byte{2})
	c := NewCondition("sigs", "ed25519", []byte{3})

	auth := &CtxAuth{Key: "auth"}
	other := &CtxAuth{Key: "other"}

	ctx := context.Background()
	assert.Nil(t, MainSigner(ctx, auth))

	ctx = auth.SetConditions(ctx, a, b)
	assert.Equal(t, a, MainSigner(ctx, auth))
	assert.Equal(t, []Address{a.Address(), b.Address()}, GetAddresses(ctx, auth))
	assert.True(t, auth.HasAddress(ctx, b.Address()))
	assert.False(t, auth.HasAddress(ctx, c.Address()))

	// Keys are isolated.
	assert.Nil(t, MainSigner(ctx, other))
	assert.False(t, other.HasAddress(ctx, a.Address()))
}
