package trie

import (
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// implementation for boltdb

type diskDB struct {
	db     *bolt.DB
	bucket []byte
}

// NewDiskDB creates a DB storing the nodes in the given bucket of a bolt
// database. The bucket is created if it doesn't exist.
func NewDiskDB(db *bolt.DB, bucket []byte) (DB, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("creating bucket: %v", err)
	}
	return &diskDB{
		db:     db,
		bucket: bucket,
	}, nil
}

func (r *diskDB) Update(f func(Bucket) error) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return f(&diskBucket{tx.Bucket(r.bucket)})
	})
}

func (r *diskDB) View(f func(Bucket) error) error {
	return r.db.View(func(tx *bolt.Tx) error {
		return f(&diskBucket{tx.Bucket(r.bucket)})
	})
}

func (r *diskDB) Close() error {
	return r.db.Close()
}

type diskBucket struct {
	b *bolt.Bucket
}

func (r *diskBucket) Delete(k []byte) error {
	return r.b.Delete(k)
}

func (r *diskBucket) Put(k, v []byte) error {
	return r.b.Put(k, v)
}

// Get returns a copy, bolt's buffers are only valid during the transaction.
func (r *diskBucket) Get(k []byte) []byte {
	return clone(r.b.Get(k))
}

func (r *diskBucket) ForEach(f func(k, v []byte) error) error {
	return r.b.ForEach(f)
}
