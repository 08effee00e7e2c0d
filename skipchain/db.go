package skipchain

import (
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// SkipBlockDB holds the database to the skipblocks.
// This is used for verification, so that all links can be followed.
// It is a wrapper to embed bolt.DB.
type SkipBlockDB struct {
	*bolt.DB
	bucketName []byte
}

// NewSkipBlockDB returns an initialized SkipBlockDB structure. The bucket is
// created if it doesn't exist yet.
func NewSkipBlockDB(db *bolt.DB, bn []byte) (*SkipBlockDB, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bn)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("creating bucket: %v", err)
	}
	return &SkipBlockDB{
		DB:         db,
		bucketName: bn,
	}, nil
}

// GetByID returns a new copy of the skip-block or nil if it doesn't exist
func (db *SkipBlockDB) GetByID(sbID SkipBlockID) *SkipBlock {
	var result *SkipBlock
	err := db.View(func(tx *bolt.Tx) error {
		sb, err := db.getFromTx(tx, sbID)
		if err != nil {
			return err
		}
		result = sb
		return nil
	})
	if err != nil {
		log.Error(err)
	}
	return result
}

// Store stores the given SkipBlock in the database. If the block is already
// known, only the forward-links that are new are added.
func (db *SkipBlockDB) Store(sb *SkipBlock) (SkipBlockID, error) {
	if sb.Hash.IsNull() || !sb.CalculateHash().Equal(sb.Hash) {
		return nil, xerrors.New("block hash doesn't match its content")
	}
	if err := sb.CheckRosters(); err != nil {
		return nil, xerrors.Errorf("invalid block: %v", err)
	}
	err := db.Update(func(tx *bolt.Tx) error {
		sbOld, err := db.getFromTx(tx, sb.Hash)
		if err != nil {
			return err
		}
		if sbOld != nil {
			if len(sb.ForwardLink) <= len(sbOld.ForwardLink) {
				return nil
			}
			for _, fl := range sb.ForwardLink[len(sbOld.ForwardLink):] {
				sbOld.AddForward(fl)
			}
			sb = sbOld
		}
		return db.storeToTx(tx, sb)
	})
	if err != nil {
		return nil, xerrors.Errorf("storing block: %v", err)
	}
	return sb.Hash, nil
}

// StoreBlocks stores the blocks in order and returns their IDs.
func (db *SkipBlockDB) StoreBlocks(blocks []*SkipBlock) ([]SkipBlockID, error) {
	var ids []SkipBlockID
	for _, sb := range blocks {
		id, err := db.Store(sb)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AddForwardLink appends the link to the block it starts from. The link
// must point to a block that is already stored.
func (db *SkipBlockDB) AddForwardLink(fl *ForwardLink) error {
	return db.Update(func(tx *bolt.Tx) error {
		from, err := db.getFromTx(tx, fl.From)
		if err != nil {
			return err
		}
		if from == nil {
			return xerrors.Errorf("unknown block %s", fl.From.Short())
		}
		to, err := db.getFromTx(tx, fl.To)
		if err != nil {
			return err
		}
		if to == nil {
			return xerrors.Errorf("unknown block %s", fl.To.Short())
		}
		if to.Index <= from.Index {
			return xerrors.New("forward link doesn't point forward")
		}
		from.AddForward(fl.Copy())
		return db.storeToTx(tx, from)
	})
}

// GetForwardLinks returns the forward-links of the block, from the lowest
// to the highest level.
func (db *SkipBlockDB) GetForwardLinks(sbID SkipBlockID) ([]*ForwardLink, error) {
	sb := db.GetByID(sbID)
	if sb == nil {
		return nil, xerrors.Errorf("unknown block %s", sbID.Short())
	}
	return sb.ForwardLink, nil
}

// GetLatest follows the highest forward-links to return the newest block of
// the chain.
func (db *SkipBlockDB) GetLatest(sb *SkipBlock) (*SkipBlock, error) {
	latest := sb
	for len(latest.ForwardLink) > 0 {
		next := db.GetByID(latest.ForwardLink[len(latest.ForwardLink)-1].To)
		if next == nil {
			return nil, xerrors.New("missing block")
		}
		latest = next
	}
	return latest, nil
}

// Length returns the number of blocks stored.
func (db *SkipBlockDB) Length() int {
	var i int
	err := db.View(func(tx *bolt.Tx) error {
		i = tx.Bucket(db.bucketName).Stats().KeyN
		return nil
	})
	if err != nil {
		log.Error(err)
	}
	return i
}

func (db *SkipBlockDB) getFromTx(tx *bolt.Tx, sbID SkipBlockID) (*SkipBlock, error) {
	val := tx.Bucket(db.bucketName).Get(sbID)
	if val == nil {
		return nil, nil
	}
	// The buffer is only valid during the transaction, and decoding
	// doesn't copy the slices.
	return DecodeSkipBlock(append([]byte{}, val...))
}

func (db *SkipBlockDB) storeToTx(tx *bolt.Tx, sb *SkipBlock) error {
	buf, err := protobuf.Encode(sb)
	if err != nil {
		return xerrors.Errorf("encoding block: %v", err)
	}
	return tx.Bucket(db.bucketName).Put(sb.Hash, buf)
}
