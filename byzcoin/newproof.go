package byzcoin

import (
	"bytes"

	"go.dedis.ch/byzproof/byzcoin/trie"
	"go.dedis.ch/byzproof/skipchain"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// NewProof creates a proof for key in the skipchain with the given id. It uses
// the trie to look up the key and the skipblockdb to create the correct
// proof for the forward links. The trie must be in the state of the newest
// block of the chain.
func NewProof(t *trie.Trie, s *skipchain.SkipBlockDB, id skipchain.SkipBlockID,
	key []byte) (p *Proof, err error) {
	p = &Proof{}
	pr, err := t.GetProof(key)
	if err != nil {
		return nil, xerrors.Errorf("couldn't get proof: %v", err)
	}
	p.InclusionProof = *pr
	sb := s.GetByID(id)
	if sb == nil {
		return nil, xerrors.New("didn't find skipchain")
	}
	if sb.Index != 0 {
		return nil, xerrors.New("id is not a genesis block")
	}
	for len(sb.ForwardLink) > 0 {
		// The highest link makes the shortest proof.
		link := sb.ForwardLink[len(sb.ForwardLink)-1]
		next := s.GetByID(link.To)
		if next == nil {
			return nil, xerrors.New("missing block in chain")
		}
		if next.Index <= sb.Index {
			return nil, xerrors.New("inconsistent forward-link")
		}
		p.Links = append(p.Links, *link)
		sb = next
	}

	header, err := DecodeDataHeader(sb.Data)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(header.TrieRoot, t.GetRoot()) {
		return nil, xerrors.New("latest block doesn't hold the root of the trie")
	}
	log.Lvlf3("proof for %x with %d links up to block %d", key, len(p.Links), sb.Index)
	p.Latest = *sb
	return
}
