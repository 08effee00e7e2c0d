package trie

import (
	"sync"

	"golang.org/x/xerrors"
)

// memDB is the DB implementation for an in-memory database.
type memDB struct {
	storage map[string][]byte
	sync.Mutex
}

// NewMemDB creates a new in-memory database.
func NewMemDB() DB {
	return &memDB{
		storage: make(map[string][]byte),
	}
}

func (r *memDB) Update(f func(Bucket) error) error {
	r.Lock()
	defer r.Unlock()
	if r.storage == nil {
		return xerrors.New("database is closed")
	}
	b := &memBucket{storage: make(map[string][]byte, len(r.storage))}
	for k, v := range r.storage {
		b.storage[k] = v
	}
	if err := f(b); err != nil {
		return err
	}
	r.storage = b.storage
	return nil
}

func (r *memDB) View(f func(Bucket) error) error {
	r.Lock()
	defer r.Unlock()
	if r.storage == nil {
		return xerrors.New("database is closed")
	}
	return f(&memBucket{storage: r.storage, readOnly: true})
}

// Close delete the memory-only database, it cannot be recovered.
func (r *memDB) Close() error {
	r.Lock()
	defer r.Unlock()
	r.storage = nil
	return nil
}

type memBucket struct {
	storage  map[string][]byte
	readOnly bool
}

var errReadOnly = xerrors.New("cannot write in a read-only transaction")

func (r *memBucket) Get(k []byte) []byte {
	return r.storage[string(k)]
}

func (r *memBucket) Put(k, v []byte) error {
	if r.readOnly {
		return errReadOnly
	}
	r.storage[string(k)] = clone(v)
	return nil
}

func (r *memBucket) Delete(k []byte) error {
	if r.readOnly {
		return errReadOnly
	}
	delete(r.storage, string(k))
	return nil
}

func (r *memBucket) ForEach(f func(k, v []byte) error) error {
	for k, v := range r.storage {
		if err := f([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}
