package factory

import (
	"context"
	"sync"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/orm"
	"github.com/iov-one/treasury/store"
	"github.com/iov-one/treasury/x/vault"
)

// Registry creates vaults and owns the ordered list of their addresses.
// Vaults never reach back into the registry.
type Registry struct {
	mu     sync.Mutex
	db     treasury.KVStore
	ledger vault.Ledger
	auth   treasury.Authenticator

	engines map[string]*vault.Engine
}

// NewRegistry returns a registry using given store. Vaults that were
// created in this store before are loaded. All vaults pay out using the
// same ledger and authenticate callers with the same authenticator.
func NewRegistry(db treasury.KVStore, ledger vault.Ledger, auth treasury.Authenticator) (*Registry, error) {
	r := &Registry{
		db:      db,
		ledger:  ledger,
		auth:    auth,
		engines: make(map[string]*vault.Engine),
	}
	addrs, err := r.list()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		e, err := vault.Load(vaultStore(db, addr), addr, ledger, auth)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load vault %s", addr)
		}
		r.engines[string(addr)] = e
	}
	return r, nil
}

// vaultStore returns the key space of a single vault.
func vaultStore(db treasury.KVStore, addr treasury.Address) treasury.KVStore {
	prefix := append([]byte("vault:"), addr...)
	return store.NewPrefixStore(db, prefix)
}

// CreateInstance creates a new vault and returns its address. Quorum and
// signers are validated the same way vault.NewSignerSet does.
func (r *Registry) CreateInstance(ctx context.Context, quorum uint32, signers []treasury.Address) (treasury.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var creator treasury.Address
	if c := treasury.MainSigner(ctx, r.auth); c != nil {
		creator = c.Address()
	}

	cache := store.NewBTreeCacheWrap(r.db, nil)
	addr, err := r.create(cache, quorum, signers, creator)
	if err != nil {
		cache.Discard()
		return nil, err
	}
	if err := cache.Write(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}

	e, err := vault.Load(vaultStore(r.db, addr), addr, r.ledger, r.auth)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load created vault")
	}
	r.engines[string(addr)] = e

	treasury.GetLogger(ctx).Info("vault created",
		"vault", addr, "quorum", quorum, "signers", len(signers), "creator", creator)
	return addr.Clone(), nil
}

func (r *Registry) create(db treasury.KVStore, quorum uint32, signers []treasury.Address, creator treasury.Address) (treasury.Address, error) {
	n, err := instanceSeq.NextInt(db)
	if err != nil {
		return nil, err
	}
	addr := instanceAddress(n)
	if _, err := vault.New(vaultStore(db, addr), addr, quorum, signers, r.ledger, r.auth); err != nil {
		return nil, err
	}
	inst := Instance{Address: addr, Creator: creator}
	if _, err := instanceBucket.Put(db, orm.EncodeSequence(n), &inst); err != nil {
		return nil, errors.Wrap(err, "cannot register vault")
	}
	return addr, nil
}

// ListInstances returns addresses of all created vaults, in creation order.
func (r *Registry) ListInstances() ([]treasury.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list()
}

func (r *Registry) list() ([]treasury.Address, error) {
	it, err := instanceBucket.PrefixScan(r.db, nil)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var addrs []treasury.Address
	for {
		var inst Instance
		switch _, err := it.LoadNext(&inst); {
		case err == nil:
			addrs = append(addrs, inst.Address)
		case errors.ErrIteratorDone.Is(err):
			return addrs, nil
		default:
			return nil, errors.Wrap(err, "cannot load instance")
		}
	}
}

// Instance returns the vault with given address.
func (r *Registry) Instance(addr treasury.Address) (*vault.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engines[string(addr)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "vault %s", addr)
	}
	return e, nil
}
