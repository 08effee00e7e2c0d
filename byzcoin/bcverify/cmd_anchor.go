package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/qantik/qrgo"
	"go.dedis.ch/byzproof/byzcoin/bcverify/lib"
	"go.dedis.ch/byzproof/skipchain"
	cli "gopkg.in/urfave/cli.v1"
)

func anchorCreate(c *cli.Context) error {
	fn := c.String("config")
	if fn == "" {
		return errors.New("--config flag is required")
	}
	gfn := c.String("genesis")
	if gfn == "" {
		return errors.New("--genesis flag is required")
	}
	scheme, err := skipchain.ParseScheme(c.String("scheme"))
	if err != nil {
		return err
	}

	genesis, err := lib.LoadBlock(gfn)
	if err != nil {
		return err
	}
	anchor, err := skipchain.NewTrustAnchor(genesis, scheme)
	if err != nil {
		return err
	}
	cfg, err := lib.NewConfig(anchor)
	if err != nil {
		return err
	}
	if err := lib.SaveConfig(fn, cfg); err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, "wrote trust anchor to", fn)
	return err
}

func anchorShow(c *cli.Context) error {
	anchor, err := loadAnchor(c)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "ByzCoinID: %x\nScheme: %s\nRoster:\n", anchor.GenesisID, anchor.Scheme)
	for _, si := range anchor.Roster.List {
		fmt.Fprintf(w, "\t%s %s\n", si.Address, si.Public)
	}
	return nil
}

func anchorQR(c *cli.Context) error {
	type baseconfig struct {
		ByzCoinID skipchain.SkipBlockID
		Scheme    string
	}

	anchor, err := loadAnchor(c)
	if err != nil {
		return err
	}
	toWrite, err := json.Marshal(baseconfig{
		ByzCoinID: anchor.GenesisID,
		Scheme:    anchor.Scheme.String(),
	})
	if err != nil {
		return err
	}

	qr, err := qrgo.NewQR(string(toWrite))
	if err != nil {
		return err
	}

	qr.OutputTerminal()

	return nil
}
