package lib

import (
	"io/ioutil"

	"go.dedis.ch/byzproof"
	"go.dedis.ch/byzproof/byzcoin"
	"go.dedis.ch/byzproof/skipchain"
	"golang.org/x/xerrors"
)

// LoadProof reads a protobuf-encoded proof, as returned by the nodes.
func LoadProof(fn string) (*byzcoin.Proof, error) {
	buf, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, xerrors.Errorf("reading proof: %v", err)
	}
	return byzcoin.DecodeProof(buf)
}

// SaveProof writes the proof to fn.
func SaveProof(fn string, p *byzcoin.Proof) error {
	buf, err := p.Encode()
	if err != nil {
		return err
	}
	return byzproof.ErrorOrNil(ioutil.WriteFile(fn, buf, 0644), "writing proof")
}

// LoadBlock reads a protobuf-encoded skipblock.
func LoadBlock(fn string) (*skipchain.SkipBlock, error) {
	buf, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, xerrors.Errorf("reading block: %v", err)
	}
	return skipchain.DecodeSkipBlock(buf)
}
