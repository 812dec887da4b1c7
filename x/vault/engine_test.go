package vault

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/store"
	"github.com/iov-one/treasury/treasurytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine  *Engine
	db      treasury.KVStore
	ledger  *treasurytest.Ledger
	auth    *treasury.CtxAuth
	signers []treasury.Condition
	token   treasury.Address
}

func newFixture(t testing.TB, quorum uint32, signers int) *fixture {
	t.Helper()

	f := &fixture{
		db:     store.MemStore(),
		ledger: &treasurytest.Ledger{},
		auth:   &treasury.CtxAuth{Key: "auth"},
		token:  treasurytest.NewAddress(),
	}
	addrs := make([]treasury.Address, signers)
	for i := range addrs {
		c := treasurytest.NewCondition()
		f.signers = append(f.signers, c)
		addrs[i] = c.Address()
	}
	e, err := New(f.db, treasurytest.SequenceAddress(1), quorum, addrs, f.ledger, f.auth)
	require.NoError(t, err)
	f.engine = e
	return f
}

// as returns a context authenticated as the n-th signer.
func (f *fixture) as(n int) context.Context {
	return f.auth.SetConditions(context.Background(), f.signers[n])
}

func (f *fixture) signer(n int) treasury.Address {
	return f.signers[n].Address()
}

func (f *fixture) fund(amount uint64) {
	f.ledger.SetBalance(f.engine.Address(), f.token, amount)
}

func (f *fixture) transfer(t testing.TB, id uint64) *TransferRequest {
	t.Helper()
	req, err := f.engine.Transfer(id)
	require.NoError(t, err)
	return req
}

func TestNewSignerSet(t *testing.T) {
	a, b := treasurytest.NewAddress(), treasurytest.NewAddress()

	cases := map[string]struct {
		quorum  uint32
		signers []treasury.Address
		wantErr bool
	}{
		"valid":               {quorum: 2, signers: []treasury.Address{a, b}},
		"single signer":       {quorum: 1, signers: []treasury.Address{a}},
		"no signers":          {quorum: 1, signers: nil, wantErr: true},
		"zero quorum":         {quorum: 0, signers: []treasury.Address{a, b}, wantErr: true},
		"quorum too big":      {quorum: 3, signers: []treasury.Address{a, b}, wantErr: true},
		"duplicated signer":   {quorum: 1, signers: []treasury.Address{a, b, a}, wantErr: true},
		"zero address signer": {quorum: 1, signers: []treasury.Address{a, make(treasury.Address, treasury.AddressLength)}, wantErr: true},
		"empty address":       {quorum: 1, signers: []treasury.Address{a, nil}, wantErr: true},
		"malformed address":   {quorum: 1, signers: []treasury.Address{a, treasury.Address("short")}, wantErr: true},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			set, err := NewSignerSet(tc.quorum, tc.signers)
			if tc.wantErr {
				require.True(t, ErrInvalidConfiguration.Is(err), "unexpected error: %+v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.quorum, set.Quorum)
			assert.Equal(t, tc.signers, set.Signers)
		})
	}
}

func TestNewVault(t *testing.T) {
	db := store.MemStore()
	addr := treasurytest.SequenceAddress(1)
	signers := treasurytest.NewAddresses(3)

	_, err := New(db, addr, 4, signers, nil, nil)
	require.True(t, ErrInvalidConfiguration.Is(err), "unexpected error: %+v", err)

	e, err := New(db, addr, 2, signers, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, addr, e.Address())
	assert.Equal(t, signers, e.Signers())
	assert.Equal(t, 3, e.NoOfValidSigners())
	for _, s := range signers {
		assert.True(t, e.IsValidSigner(s))
	}
	assert.False(t, e.IsValidSigner(treasurytest.NewAddress()))

	q, err := e.Quorum()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), q)

	_, err = New(db, addr, 2, signers, nil, nil)
	require.True(t, errors.ErrDuplicate.Is(err), "unexpected error: %+v", err)
}

func TestTransferExecutesAtQuorum(t *testing.T) {
	f := newFixture(t, 4, 4)
	f.fund(100)

	id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	count, err := f.engine.TxCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.ApproveTransfer(f.as(i), id))
	}
	req := f.transfer(t, id)
	assert.Equal(t, uint32(3), req.ApprovalCount)
	assert.False(t, req.Executed)
	assert.Empty(t, f.ledger.Transfers())

	require.NoError(t, f.engine.ApproveTransfer(f.as(3), id))
	req = f.transfer(t, id)
	assert.Equal(t, uint32(4), req.ApprovalCount)
	assert.True(t, req.Executed)
	assert.Equal(t, []treasurytest.Transfer{
		{From: f.engine.Address(), Recipient: f.signer(0), Asset: f.token, Amount: 10},
	}, f.ledger.Transfers())

	approvers, err := f.engine.TransferApprovals(id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []treasury.Address{f.signer(0), f.signer(1), f.signer(2), f.signer(3)}, approvers)
}

func TestTransferInsufficientFunds(t *testing.T) {
	f := newFixture(t, 2, 3)

	id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(2), f.token)
	require.NoError(t, err)
	require.NoError(t, f.engine.ApproveTransfer(f.as(0), id))

	err = f.engine.ApproveTransfer(f.as(1), id)
	require.True(t, errors.ErrInsufficientFunds.Is(err), "unexpected error: %+v", err)

	req := f.transfer(t, id)
	assert.Equal(t, uint32(1), req.ApprovalCount)
	assert.False(t, req.Executed)
	approvers, err := f.engine.TransferApprovals(id)
	require.NoError(t, err)
	assert.Equal(t, []treasury.Address{f.signer(0)}, approvers)

	// Partial funding is not enough.
	f.fund(9)
	err = f.engine.ApproveTransfer(f.as(1), id)
	require.True(t, errors.ErrInsufficientFunds.Is(err), "unexpected error: %+v", err)

	f.fund(10)
	require.NoError(t, f.engine.ApproveTransfer(f.as(1), id))
	req = f.transfer(t, id)
	assert.Equal(t, uint32(2), req.ApprovalCount)
	assert.True(t, req.Executed)
	assert.Len(t, f.ledger.Transfers(), 1)

	// Another remaining signer cannot execute it again.
	err = f.engine.ApproveTransfer(f.as(2), id)
	require.True(t, ErrAlreadyExecuted.Is(err), "unexpected error: %+v", err)
	assert.Len(t, f.ledger.Transfers(), 1)
}

func TestTransferApprovedByRemainingSignerAfterFunding(t *testing.T) {
	f := newFixture(t, 2, 3)

	id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(2), f.token)
	require.NoError(t, err)
	require.NoError(t, f.engine.ApproveTransfer(f.as(0), id))
	err = f.engine.ApproveTransfer(f.as(1), id)
	require.True(t, errors.ErrInsufficientFunds.Is(err), "unexpected error: %+v", err)

	f.fund(10)
	require.NoError(t, f.engine.ApproveTransfer(f.as(2), id))
	assert.True(t, f.transfer(t, id).Executed)
}

func TestTransferRejected(t *testing.T) {
	cases := map[string]struct {
		ledgerErr error
		wantErr   *errors.Error
	}{
		"rejected":           {ledgerErr: errors.Wrap(errors.ErrTransferRejected, "allowance"), wantErr: errors.ErrTransferRejected},
		"insufficient":       {ledgerErr: errors.ErrInsufficientFunds, wantErr: errors.ErrInsufficientFunds},
		"unknown ledger err": {ledgerErr: fmt.Errorf("boom"), wantErr: errors.ErrTransferRejected},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t, 1, 2)
			f.fund(50)

			id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(1), f.token)
			require.NoError(t, err)

			f.ledger.Err = tc.ledgerErr
			err = f.engine.ApproveTransfer(f.as(0), id)
			require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)

			req := f.transfer(t, id)
			assert.Equal(t, uint32(0), req.ApprovalCount)
			assert.False(t, req.Executed)

			f.ledger.Err = nil
			require.NoError(t, f.engine.ApproveTransfer(f.as(0), id))
			assert.True(t, f.transfer(t, id).Executed)
		})
	}
}

// failingStore fails all writes while broken is set.
type failingStore struct {
	treasury.KVStore
	broken bool
}

func (s *failingStore) Set(key, value []byte) error {
	if s.broken {
		return fmt.Errorf("disk full")
	}
	return s.KVStore.Set(key, value)
}

func (s *failingStore) Delete(key []byte) error {
	if s.broken {
		return fmt.Errorf("disk full")
	}
	return s.KVStore.Delete(key)
}

func TestStoreFailureDoesNotPayOut(t *testing.T) {
	db := &failingStore{KVStore: store.MemStore()}
	ledger := &treasurytest.Ledger{}
	auth := &treasury.CtxAuth{Key: "auth"}
	signer := treasurytest.NewCondition()
	ctx := auth.SetConditions(context.Background(), signer)
	token := treasurytest.NewAddress()

	e, err := New(db, treasurytest.SequenceAddress(1), 1, []treasury.Address{signer.Address()}, ledger, auth)
	require.NoError(t, err)
	ledger.SetBalance(e.Address(), token, 100)

	id, err := e.ProposeTransfer(ctx, 40, treasurytest.NewAddress(), token)
	require.NoError(t, err)

	db.broken = true
	err = e.ApproveTransfer(ctx, id)
	require.True(t, errors.ErrDatabase.Is(err), "unexpected error: %+v", err)
	assert.Empty(t, ledger.Transfers())

	db.broken = false
	req, err := e.Transfer(id)
	require.NoError(t, err)
	assert.False(t, req.Executed)
	assert.Equal(t, uint32(0), req.ApprovalCount)

	require.NoError(t, e.ApproveTransfer(ctx, id))
	assert.Len(t, ledger.Transfers(), 1)
	balance, err := ledger.BalanceOf(ctx, e.Address(), token)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), balance)
}

func TestProposeTransferValidation(t *testing.T) {
	f := newFixture(t, 1, 2)
	zero := make(treasury.Address, treasury.AddressLength)

	cases := map[string]struct {
		ctx       context.Context
		amount    uint64
		recipient treasury.Address
		asset     treasury.Address
		wantErr   *errors.Error
	}{
		"zero amount": {
			ctx: f.as(0), amount: 0, recipient: f.signer(0), asset: f.token,
			wantErr: errors.ErrInvalidAmount,
		},
		"zero recipient": {
			ctx: f.as(0), amount: 10, recipient: zero, asset: f.token,
			wantErr: ErrInvalidAddress,
		},
		"nil recipient": {
			ctx: f.as(0), amount: 10, recipient: nil, asset: f.token,
			wantErr: ErrInvalidAddress,
		},
		"zero asset": {
			ctx: f.as(0), amount: 10, recipient: f.signer(0), asset: zero,
			wantErr: ErrInvalidAddress,
		},
		"malformed asset": {
			ctx: f.as(0), amount: 10, recipient: f.signer(0), asset: treasury.Address("x"),
			wantErr: ErrInvalidAddress,
		},
		"address is checked before amount": {
			ctx: f.as(0), amount: 0, recipient: zero, asset: f.token,
			wantErr: ErrInvalidAddress,
		},
		"signer is checked first": {
			ctx:    f.auth.SetConditions(context.Background(), treasurytest.NewCondition()),
			amount: 0, recipient: zero, asset: zero,
			wantErr: errors.ErrUnauthorized,
		},
		"not authenticated": {
			ctx: context.Background(), amount: 10, recipient: f.signer(0), asset: f.token,
			wantErr: errors.ErrUnauthorized,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			_, err := f.engine.ProposeTransfer(tc.ctx, tc.amount, tc.recipient, tc.asset)
			require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
		})
	}

	count, err := f.engine.TxCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNonSignerCannotChangeState(t *testing.T) {
	f := newFixture(t, 2, 2)
	f.fund(100)
	stranger := f.auth.SetConditions(context.Background(), treasurytest.NewCondition())

	id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)
	qid, err := f.engine.ProposeQuorumUpdate(f.as(0), 1)
	require.NoError(t, err)

	_, err = f.engine.ProposeTransfer(stranger, 10, f.signer(0), f.token)
	require.True(t, errors.ErrUnauthorized.Is(err), "unexpected error: %+v", err)
	err = f.engine.ApproveTransfer(stranger, id)
	require.True(t, errors.ErrUnauthorized.Is(err), "unexpected error: %+v", err)
	_, err = f.engine.ProposeQuorumUpdate(stranger, 1)
	require.True(t, errors.ErrUnauthorized.Is(err), "unexpected error: %+v", err)
	err = f.engine.ApproveQuorumUpdate(stranger, qid)
	require.True(t, errors.ErrUnauthorized.Is(err), "unexpected error: %+v", err)

	txCount, err := f.engine.TxCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), txCount)
	quorumCount, err := f.engine.QuorumCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), quorumCount)
	assert.Equal(t, uint32(0), f.transfer(t, id).ApprovalCount)
	approvers, err := f.engine.NoOfApprovers()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), approvers)
}

func TestInvalidRequestID(t *testing.T) {
	f := newFixture(t, 2, 2)

	_, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)
	_, err = f.engine.ProposeQuorumUpdate(f.as(0), 1)
	require.NoError(t, err)

	for _, id := range []uint64{0, 2, 1000} {
		err := f.engine.ApproveTransfer(f.as(0), id)
		require.True(t, ErrInvalidRequestID.Is(err), "id %d: unexpected error: %+v", id, err)

		err = f.engine.ApproveQuorumUpdate(f.as(0), id)
		require.True(t, ErrInvalidRequestID.Is(err), "id %d: unexpected error: %+v", id, err)

		_, err = f.engine.Transfer(id)
		require.True(t, ErrInvalidRequestID.Is(err), "id %d: unexpected error: %+v", id, err)
		_, err = f.engine.QuorumUpdateApprovals(id)
		require.True(t, ErrInvalidRequestID.Is(err), "id %d: unexpected error: %+v", id, err)
	}

	// Request ID is checked before the caller.
	stranger := f.auth.SetConditions(context.Background(), treasurytest.NewCondition())
	err = f.engine.ApproveTransfer(stranger, 0)
	require.True(t, ErrInvalidRequestID.Is(err), "unexpected error: %+v", err)
}

func TestDuplicateApproval(t *testing.T) {
	f := newFixture(t, 3, 3)

	id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)
	require.NoError(t, f.engine.ApproveTransfer(f.as(1), id))

	err = f.engine.ApproveTransfer(f.as(1), id)
	require.True(t, ErrDuplicateApproval.Is(err), "unexpected error: %+v", err)
	assert.Equal(t, uint32(1), f.transfer(t, id).ApprovalCount)

	qid, err := f.engine.ProposeQuorumUpdate(f.as(0), 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.ApproveQuorumUpdate(f.as(2), qid))
	err = f.engine.ApproveQuorumUpdate(f.as(2), qid)
	require.True(t, ErrDuplicateApproval.Is(err), "unexpected error: %+v", err)

	n, err := f.engine.NoOfApprovers()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
}

func TestApprovalsAreKeptPerRequest(t *testing.T) {
	f := newFixture(t, 2, 2)

	first, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)
	second, err := f.engine.ProposeTransfer(f.as(1), 20, f.signer(1), f.token)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second)

	qid, err := f.engine.ProposeQuorumUpdate(f.as(0), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), qid, "quorum update IDs are independent of transfer IDs")

	require.NoError(t, f.engine.ApproveTransfer(f.as(0), first))
	require.NoError(t, f.engine.ApproveTransfer(f.as(0), second))
	require.NoError(t, f.engine.ApproveQuorumUpdate(f.as(0), qid))

	for _, id := range []uint64{first, second} {
		approvers, err := f.engine.TransferApprovals(id)
		require.NoError(t, err)
		assert.Equal(t, []treasury.Address{f.signer(0)}, approvers)
	}
	approvers, err := f.engine.QuorumUpdateApprovals(qid)
	require.NoError(t, err)
	assert.Equal(t, []treasury.Address{f.signer(0)}, approvers)
}

func TestQuorumUpdate(t *testing.T) {
	f := newFixture(t, 2, 3)

	for _, q := range []uint32{0, 4} {
		_, err := f.engine.ProposeQuorumUpdate(f.as(0), q)
		require.True(t, ErrInvalidQuorum.Is(err), "quorum %d: unexpected error: %+v", q, err)
	}
	count, err := f.engine.QuorumCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	id, err := f.engine.ProposeQuorumUpdate(f.as(0), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	n, err := f.engine.NoOfApprovers()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n, "proposer does not approve implicitly")

	require.NoError(t, f.engine.ApproveQuorumUpdate(f.as(1), id))
	q, err := f.engine.Quorum()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), q)

	require.NoError(t, f.engine.ApproveQuorumUpdate(f.as(2), id))
	q, err = f.engine.Quorum()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), q)
	assert.True(t, q <= uint32(f.engine.NoOfValidSigners()))

	req, err := f.engine.QuorumUpdate(id)
	require.NoError(t, err)
	assert.True(t, req.Executed)
	assert.Equal(t, uint32(2), req.ApprovalCount)

	err = f.engine.ApproveQuorumUpdate(f.as(0), id)
	require.True(t, ErrAlreadyExecuted.Is(err), "unexpected error: %+v", err)

	n, err = f.engine.NoOfApprovers()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	// The new quorum applies to requests approved afterwards.
	f.fund(10)
	tid, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)
	require.NoError(t, f.engine.ApproveTransfer(f.as(0), tid))
	require.NoError(t, f.engine.ApproveTransfer(f.as(1), tid))
	assert.False(t, f.transfer(t, tid).Executed)
	require.NoError(t, f.engine.ApproveTransfer(f.as(2), tid))
	assert.True(t, f.transfer(t, tid).Executed)
}

func TestLoweredQuorumExecutesOnNextApproval(t *testing.T) {
	f := newFixture(t, 3, 3)
	f.fund(10)

	tid, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)
	require.NoError(t, f.engine.ApproveTransfer(f.as(0), tid))

	qid, err := f.engine.ProposeQuorumUpdate(f.as(0), 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.ApproveQuorumUpdate(f.as(i), qid))
	}
	q, err := f.engine.Quorum()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), q)

	// Already holding one approval does not execute the transfer. The
	// next approval does.
	assert.False(t, f.transfer(t, tid).Executed)
	require.NoError(t, f.engine.ApproveTransfer(f.as(1), tid))
	assert.True(t, f.transfer(t, tid).Executed)
	assert.Len(t, f.ledger.Transfers(), 1)
}

func TestLoadVault(t *testing.T) {
	f := newFixture(t, 1, 2)
	id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)

	loaded, err := Load(f.db, f.engine.Address(), f.ledger, f.auth)
	require.NoError(t, err)
	assert.Equal(t, f.engine.Signers(), loaded.Signers())
	req, err := loaded.Transfer(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), req.Amount)

	_, err = Load(store.MemStore(), f.engine.Address(), f.ledger, f.auth)
	require.True(t, errors.ErrNotFound.Is(err), "unexpected error: %+v", err)
}

func TestConcurrentApprovalsExecuteOnce(t *testing.T) {
	const signers = 8
	f := newFixture(t, 5, signers)
	f.fund(1000)

	id, err := f.engine.ProposeTransfer(f.as(0), 10, f.signer(0), f.token)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		failed   int
	)
	for i := 0; i < signers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := f.engine.ApproveTransfer(f.as(i), id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case ErrAlreadyExecuted.Is(err):
				failed++
			default:
				t.Errorf("unexpected error: %+v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, approved)
	assert.Equal(t, 3, failed)
	assert.Len(t, f.ledger.Transfers(), 1)
	assert.Equal(t, uint32(5), f.transfer(t, id).ApprovalCount)
}
