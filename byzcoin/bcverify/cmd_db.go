package main

import (
	"errors"
	"fmt"

	"go.dedis.ch/byzproof"
	"go.dedis.ch/byzproof/skipchain"
	"go.dedis.ch/onet/v3/log"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
	cli "gopkg.in/urfave/cli.v1"
)

func openDB(c *cli.Context) (*skipchain.SkipBlockDB, error) {
	fn := c.String("db")
	if fn == "" {
		return nil, errors.New("--db flag is required")
	}
	db, err := bolt.Open(fn, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("opening db: %v", err)
	}
	bucket := []byte(c.String("bucket"))
	err = db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucket) == nil {
			return xerrors.Errorf("no bucket %s", bucket)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	sdb, err := skipchain.NewSkipBlockDB(db, bucket)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sdb, nil
}

// dbCheck goes through all blocks of the chain stored in a database and
// checks their hashes and the signatures of all their forward-links. The
// walk stops at the first link that doesn't move forward.
func dbCheck(c *cli.Context) error {
	anchor, err := loadAnchor(c)
	if err != nil {
		return err
	}
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	sb := db.GetByID(anchor.GenesisID)
	if sb == nil {
		return xerrors.Errorf("genesis block %x not in db", anchor.GenesisID)
	}

	var links []skipchain.ForwardLink
	blocks, failures := 0, 0
	for sb != nil {
		blocks++
		errStr := fmt.Sprintf("found block %d with", sb.Index)
		if !sb.Hash.Equal(sb.CalculateHash()) {
			log.Errorf("%s wrong hash: %x instead of %x", errStr, sb.Hash, sb.CalculateHash())
			failures++
		}
		if sb.Index > 0 && !sb.SkipChainID().Equal(anchor.GenesisID) {
			log.Errorf("%s different skipchain-id: %x", errStr, sb.SkipChainID())
			failures++
		}

		for i, fl := range sb.ForwardLink {
			if fl.IsEmpty() {
				continue
			}
			errStrFl := fmt.Sprintf("%s forwardLink at height %d", errStr, i)
			if !fl.From.Equal(sb.Hash) {
				log.Errorf("%s not originating from itself", errStrFl)
				failures++
			}
			if db.GetByID(fl.To) == nil {
				log.Errorf("%s pointing to an unknown block", errStrFl)
				failures++
				continue
			}
			err := fl.Verify(byzproof.Suite, sb.Roster.Publics(), anchor.Scheme)
			if err != nil {
				log.Errorf("%s wrong signature: %v", errStrFl, err)
				failures++
			}
		}

		if len(sb.ForwardLink) == 0 {
			break
		}
		next := db.GetByID(sb.ForwardLink[0].To)
		if next != nil && next.Index <= sb.Index {
			log.Errorf("%s forwardLink going back to block %d", errStr, next.Index)
			failures++
			break
		}
		links = append(links, *sb.ForwardLink[0])
		sb = next
	}
	if sb == nil {
		return xerrors.New("chain ends in a missing block")
	}

	if err := skipchain.VerifyChain(byzproof.Suite, anchor, links, sb); err != nil {
		log.Errorf("chain doesn't verify from the anchor: %v", err)
		failures++
	}
	_, err = fmt.Fprintf(c.App.Writer, "checked %d blocks up to index %d: %d failures\n",
		blocks, sb.Index, failures)
	if err != nil {
		return err
	}
	if failures > 0 {
		return xerrors.Errorf("found %d failures", failures)
	}
	return nil
}
