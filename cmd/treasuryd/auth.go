package main

import (
	"bytes"
	"encoding/hex"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/crypto"
	"github.com/iov-one/treasury/x/sigs"
	"github.com/tendermint/tendermint/libs/log"
)

// Request authentication headers. A client signs
// crypto.RequestSignBytes(method, path, timestamp, sequence, body) with its
// ed25519 key. The sequence is served by GET /sigs/{address}. Requests
// without a signature are served unauthenticated.
const (
	headerPubKey    = "X-Treasury-Pubkey"
	headerSignature = "X-Treasury-Signature"
	headerTimestamp = "X-Treasury-Timestamp"
	headerSequence  = "X-Treasury-Sequence"
)

const maxBodySize = 1 << 20

// SignatureAuth verifies the request signature and stores the signer
// condition in the request context. It also attaches the logger to the
// context.
//
// Each signer sequence is accepted once, so a signed request cannot be
// replayed.
type SignatureAuth struct {
	Auth      *treasury.CtxAuth
	Sequences *sigs.Controller
	MaxSkew   time.Duration
	Logger  log.Logger
	Next    http.Handler

	// Now defaults to time.Now.
	Now func() time.Time
}

func (h *SignatureAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Logger != nil {
		ctx = treasury.WithLogger(ctx, h.Logger.With("path", r.URL.Path))
	}

	if r.Header.Get(headerSignature) == "" {
		h.Next.ServeHTTP(w, r.WithContext(ctx))
		return
	}

	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		JSONErr(w, http.StatusBadRequest, "cannot read body")
		return
	}
	r.Body = ioutil.NopCloser(bytes.NewReader(body))

	pub, err := crypto.ParsePublicKey(r.Header.Get(headerPubKey))
	if err != nil {
		JSONErr(w, http.StatusUnauthorized, "invalid public key")
		return
	}
	sig, err := hex.DecodeString(r.Header.Get(headerSignature))
	if err != nil {
		JSONErr(w, http.StatusUnauthorized, "invalid signature encoding")
		return
	}
	ts, err := strconv.ParseInt(r.Header.Get(headerTimestamp), 10, 64)
	if err != nil {
		JSONErr(w, http.StatusUnauthorized, "invalid timestamp")
		return
	}
	seq, err := strconv.ParseInt(r.Header.Get(headerSequence), 10, 64)
	if err != nil {
		JSONErr(w, http.StatusUnauthorized, "invalid sequence")
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	if skew := now().Sub(time.Unix(ts, 0)); skew > h.MaxSkew || skew < -h.MaxSkew {
		JSONErr(w, http.StatusUnauthorized, "timestamp out of range")
		return
	}
	if !pub.Verify(crypto.RequestSignBytes(r.Method, r.URL.Path, ts, seq, body), sig) {
		JSONErr(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	if err := h.Sequences.Consume(pub, seq); err != nil {
		JSONError(w, r.WithContext(ctx), err, false)
		return
	}

	ctx = h.Auth.SetConditions(ctx, pub.Condition())
	h.Next.ServeHTTP(w, r.WithContext(ctx))
}
