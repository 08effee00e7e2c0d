package skipchain

import (
	"go.dedis.ch/byzproof"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/onet/v3/log"
)

// TrustAnchor is what a client knows about a chain before it sees any proof:
// the ID of the genesis block, the roster that created it and the signature
// scheme the roster uses. It must come from a trusted source and is never
// taken from the proof itself.
type TrustAnchor struct {
	GenesisID SkipBlockID
	Roster    *Roster
	Scheme    SignatureScheme
}

// NewTrustAnchor returns the anchor of a genesis block the caller already
// trusts. The hash of the block is checked against its content.
func NewTrustAnchor(genesis *SkipBlock, scheme SignatureScheme) (*TrustAnchor, error) {
	if genesis == nil || genesis.Index != 0 {
		return nil, byzproof.NewError(byzproof.ErrInvalidInput, "not a genesis block")
	}
	if !genesis.CalculateHash().Equal(genesis.Hash) {
		return nil, byzproof.NewError(byzproof.ErrInvalidInput, "genesis block hash doesn't match its content")
	}
	if genesis.Roster == nil || len(genesis.Roster.List) == 0 {
		return nil, byzproof.NewError(byzproof.ErrInvalidInput, "genesis block without roster")
	}
	if err := genesis.Roster.Check(); err != nil {
		return nil, byzproof.NewErrorf(byzproof.ErrInvalidInput, "genesis roster: %v", err)
	}
	return &TrustAnchor{
		GenesisID: genesis.Hash,
		Roster:    genesis.Roster,
		Scheme:    scheme,
	}, nil
}

// VerifyChain follows the links from the genesis block of the anchor up to
// the latest block. Every link must start where the previous one ended and
// be signed by the roster in charge at that point. A link carrying a new
// roster hands the signing over to it for the following links. Finally the
// content of latest must hash to the target of the last link.
func VerifyChain(suite pairing.Suite, anchor *TrustAnchor, links []ForwardLink, latest *SkipBlock) error {
	if anchor == nil || anchor.GenesisID.IsNull() {
		return byzproof.NewError(byzproof.ErrInvalidInput, "missing trust anchor")
	}
	if anchor.Roster == nil || len(anchor.Roster.List) == 0 {
		return byzproof.NewError(byzproof.ErrInvalidInput, "trust anchor without roster")
	}
	if err := anchor.Roster.Check(); err != nil {
		return byzproof.NewErrorf(byzproof.ErrInvalidInput, "trust anchor: %v", err)
	}
	if latest == nil {
		return byzproof.NewError(byzproof.ErrInvalidInput, "missing latest block")
	}
	if err := latest.Roster.Check(); err != nil {
		return byzproof.NewErrorf(byzproof.ErrMalformedProof, "latest block: %v", err)
	}

	sbID := anchor.GenesisID
	publics := anchor.Roster.Publics()
	for i, l := range links {
		if !l.From.Equal(sbID) {
			return byzproof.NewErrorf(byzproof.ErrChainBroken,
				"link %d is not properly evolved from genesis block", i)
		}
		if err := l.NewRoster.Check(); err != nil {
			return byzproof.NewErrorf(byzproof.ErrMalformedProof, "link %d: %v", i, err)
		}
		if err := l.Verify(suite, publics, anchor.Scheme); err != nil {
			return byzproof.NewErrorf(byzproof.ErrChainBroken,
				"signature verification failed at link %d: %v", i, err)
		}
		log.Lvlf3("link %d: %s -> %s", i, l.From.Short(), l.To.Short())
		sbID = l.To
		if l.NewRoster != nil {
			log.Lvl3("roster changed at block", sbID.Short())
			publics = l.NewRoster.Publics()
		}
	}

	if !latest.Hash.Equal(sbID) || !latest.CalculateHash().Equal(sbID) {
		return byzproof.NewError(byzproof.ErrChainBroken,
			"last forward link does not point to the latest block")
	}
	log.Lvl2("verified chain of", len(links), "links up to block", latest.Index)
	return nil
}
