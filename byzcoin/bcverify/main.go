// bcverify checks proofs of a ByzCoin ledger without contacting any node.
// The trust anchor of the ledger is kept in a toml file, and proofs are read
// in the protobuf format the nodes send them in.
package main

import (
	"os"

	"go.dedis.ch/byzproof/byzcoin/bcverify/lib"
	"go.dedis.ch/onet/v3/log"
	cli "gopkg.in/urfave/cli.v1"
)

var cliApp = cli.NewApp()

var gitTag = "dev"

func init() {
	cliApp.Name = lib.BcvName
	cliApp.Usage = "Verify proofs of ByzCoin ledgers offline."
	cliApp.Version = gitTag
	cliApp.Commands = cmds // stored in "commands.go"
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
}

func main() {
	err := cliApp.Run(os.Args)
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}
