package treasury

import (
	"encoding/json"
	"testing"

	"github.com/iov-one/treasury/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionParse(t *testing.T) {
	cases := map[string]struct {
		cond    Condition
		wantErr *errors.Error
		ext     string
		typ     string
		data    []byte
	}{
		"valid condition": {
			cond: NewCondition("vault", "instance", []byte{0, 1, 2}),
			ext:  "vault",
			typ:  "instance",
			data: []byte{0, 1, 2},
		},
		"data may contain a newline": {
			cond: NewCondition("sigs", "ed25519", []byte("a\nb")),
			ext:  "sigs",
			typ:  "ed25519",
			data: []byte("a\nb"),
		},
		"extension too short": {
			cond:    NewCondition("ab", "instance", []byte{1}),
			wantErr: errors.ErrInput,
		},
		"missing data": {
			cond:    Condition("vault/instance/"),
			wantErr: errors.ErrInput,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			ext, typ, data, err := tc.cond.Parse()
			if tc.wantErr != nil {
				require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
				require.True(t, tc.wantErr.Is(tc.cond.Validate()))
				return
			}
			require.NoError(t, err)
			require.NoError(t, tc.cond.Validate())
			assert.Equal(t, tc.ext, ext)
			assert.Equal(t, tc.typ, typ)
			assert.Equal(t, tc.data, data)
		})
	}
}

func TestConditionAddress(t *testing.T) {
	a := NewCondition("vault", "instance", []byte{1})
	b := NewCondition("vault", "instance", []byte{2})

	assert.Len(t, a.Address(), AddressLength)
	assert.True(t, a.Address().Equals(a.Address()))
	assert.False(t, a.Address().Equals(b.Address()))
	assert.Equal(t, "vault/instance/01", a.String())
}

func TestAddressIsZero(t *testing.T) {
	cases := map[string]struct {
		addr Address
		want bool
	}{
		"nil":         {addr: nil, want: true},
		"empty":       {addr: Address{}, want: true},
		"zero bytes":  {addr: make(Address, AddressLength), want: true},
		"one bit set": {addr: append(make(Address, AddressLength-1), 1), want: false},
		"condition":   {addr: NewCondition("vault", "instance", []byte{1}).Address(), want: false},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.addr.IsZero())
		})
	}
}

func TestParseAddress(t *testing.T) {
	cond := NewCondition("vault", "instance", []byte{0xA, 0xB})
	addr := cond.Address()
	b32, err := addr.Bech32()
	require.NoError(t, err)

	cases := map[string]struct {
		enc     string
		want    Address
		wantErr *errors.Error
	}{
		"hex": {
			enc:  addr.String(),
			want: addr,
		},
		"hex with 0x prefix": {
			enc:  "0x" + addr.String(),
			want: addr,
		},
		"explicit hex": {
			enc:  "hex:" + addr.String(),
			want: addr,
		},
		"zero address": {
			enc:  "0x0000000000000000000000000000000000000000",
			want: make(Address, AddressLength),
		},
		"condition": {
			enc:  "cond:" + cond.String(),
			want: addr,
		},
		"bech32": {
			enc:  "bech32:" + b32,
			want: addr,
		},
		"too short": {
			enc:     "0xABCD",
			wantErr: errors.ErrInput,
		},
		"not hex": {
			enc:     "zzz",
			wantErr: errors.ErrInput,
		},
		"unknown format": {
			enc:     "base58:abc",
			wantErr: errors.ErrType,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := ParseAddress(tc.enc)
			if tc.wantErr != nil {
				require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAddressJSON(t *testing.T) {
	addr := NewCondition("vault", "instance", []byte{1}).Address()

	raw, err := json.Marshal(addr)
	require.NoError(t, err)
	assert.Equal(t, `"`+addr.String()+`"`, string(raw))

	var got Address
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, addr, got)

	var empty Address
	require.NoError(t, json.Unmarshal([]byte(`""`), &empty))
	assert.Nil(t, empty)
}
