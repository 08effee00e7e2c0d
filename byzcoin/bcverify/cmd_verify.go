package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.dedis.ch/byzproof/byzcoin"
	"go.dedis.ch/byzproof/byzcoin/bcverify/lib"
	"go.dedis.ch/byzproof/skipchain"
	"go.dedis.ch/onet/v3/log"
	cli "gopkg.in/urfave/cli.v1"
)

func loadAnchor(c *cli.Context) (*skipchain.TrustAnchor, error) {
	fn := c.String("config")
	if fn == "" {
		return nil, errors.New("--config flag is required")
	}
	cfg, err := lib.LoadConfig(fn)
	if err != nil {
		return nil, err
	}
	return cfg.Anchor()
}

func loadProof(c *cli.Context) (*byzcoin.Proof, error) {
	fn := c.String("proof")
	if fn == "" {
		fn = c.Args().First()
		if fn == "" {
			return nil, errors.New("proof argument or --proof flag is required")
		}
	}
	return lib.LoadProof(fn)
}

func verify(c *cli.Context) error {
	anchor, err := loadAnchor(c)
	if err != nil {
		return err
	}
	p, err := loadProof(c)
	if err != nil {
		return err
	}

	if c.String("key") == "" {
		if err := p.Verify(anchor); err != nil {
			return err
		}
		log.Lvl1("proof verified up to block", p.Latest.Index)
		_, err = fmt.Fprintf(c.App.Writer, "proof is valid for ByzCoin %x at block %d\n",
			anchor.GenesisID, p.Latest.Index)
		return err
	}

	id, err := byzcoin.ParseInstanceID(c.String("key"))
	if err != nil {
		return err
	}
	inst, err := p.Instance(anchor, id.Slice())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s\nvalue: %s\n", inst, hex.EncodeToString(inst.Value))
	return err
}

func inspect(c *cli.Context) error {
	p, err := loadProof(c)
	if err != nil {
		return err
	}
	w := c.App.Writer

	fmt.Fprintf(w, "Latest block:\n\t%s\n", p.Latest.Sprint(false))
	header, err := byzcoin.DecodeDataHeader(p.Latest.Data)
	if err != nil {
		fmt.Fprintf(w, "\tinvalid header: %v\n", err)
	} else {
		fmt.Fprintf(w, "Header:\n\tTrieRoot: %x\n\tTimestamp: %d\n\tVersion: %d\n",
			header.TrieRoot, header.Timestamp, header.Version)
	}
	fmt.Fprintf(w, "Proof root: %x\n", p.InclusionProof.GetRoot())

	fmt.Fprintf(w, "Links: %d\n", len(p.Links))
	for i, l := range p.Links {
		fmt.Fprintf(w, "\t%d: %s -> %s", i, l.From.Short(), l.To.Short())
		if l.NewRoster != nil {
			fmt.Fprintf(w, " (new roster of %d)", len(l.NewRoster.List))
		}
		fmt.Fprintln(w)
	}

	key, value, cid, did, err := p.KeyValue()
	if err != nil {
		_, err = fmt.Fprintln(w, "Proof of absence")
		return err
	}
	_, err = fmt.Fprintf(w, "Instance:\n\tKey: %x\n\tContract: %s\n\tDarc: %s\n\tValue: %x\n",
		key, cid, did, value)
	return err
}
