package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var configFlag = cli.StringFlag{
	Name:   "config, c",
	EnvVar: "BCV_CONFIG",
	Usage:  "toml file with the trust anchor of the ledger",
}

var proofFlag = cli.StringFlag{
	Name:  "proof, p",
	Usage: "file with the protobuf-encoded proof",
}

var cmds = cli.Commands{
	{
		Name:    "verify",
		Usage:   "verify a proof against the trust anchor",
		Aliases: []string{"v"},
		Flags: []cli.Flag{
			configFlag,
			proofFlag,
			cli.StringFlag{
				Name:  "key, k",
				Usage: "hex-encoded instance id that must be in the proof",
			},
		},
		Action: verify,
	},
	{
		Name:    "inspect",
		Usage:   "print the content of a proof without verifying it",
		Aliases: []string{"i"},
		Flags: []cli.Flag{
			proofFlag,
		},
		Action: inspect,
	},
	{
		Name:  "anchor",
		Usage: "handle the trust anchor of a ledger",
		Subcommands: cli.Commands{
			{
				Name:  "create",
				Usage: "create the trust anchor from a genesis block",
				Flags: []cli.Flag{
					configFlag,
					cli.StringFlag{
						Name:  "genesis, g",
						Usage: "file with the protobuf-encoded genesis block",
					},
					cli.StringFlag{
						Name:  "scheme, s",
						Value: "bls",
						Usage: "signature scheme of the roster: bls or bdn",
					},
				},
				Action: anchorCreate,
			},
			{
				Name:   "show",
				Usage:  "print the trust anchor",
				Flags:  []cli.Flag{configFlag},
				Action: anchorShow,
			},
			{
				Name:   "qr",
				Usage:  "print the ID of the ledger as a QR code",
				Flags:  []cli.Flag{configFlag},
				Action: anchorQR,
			},
		},
	},
	{
		Name:  "db",
		Usage: "work with a database of skipblocks",
		Subcommands: cli.Commands{
			{
				Name:  "check",
				Usage: "check hashes and forward-links of all blocks of the chain",
				Flags: []cli.Flag{
					configFlag,
					cli.StringFlag{
						Name:  "db",
						Usage: "bolt file holding the blocks",
					},
					cli.StringFlag{
						Name:  "bucket, b",
						Value: "skipblocks",
						Usage: "bucket of the blocks in the db",
					},
				},
				Action: dbCheck,
			},
		},
	},
}
