package byzcoin

import (
	"bytes"

	"go.dedis.ch/byzproof"
	"go.dedis.ch/byzproof/byzcoin/trie"
	"go.dedis.ch/byzproof/darc"
	"go.dedis.ch/byzproof/skipchain"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// Proof represents everything necessary to verify a given
// key/value pair is stored in a skipchain. The proof is in three parts:
//  1. InclusionProof proves the presence or absence of the key. In case of
//     the key being present, the value is included in the proof.
//  2. Latest is used to verify the merkle tree root used in the proof is
//     stored in the latest skipblock.
//  3. Links proves that the latest skipblock is part of the skipchain.
//
// The genesis block and its roster are not part of the proof, they are
// given by the caller as a skipchain.TrustAnchor.
type Proof struct {
	// InclusionProof is the deserialized InclusionProof
	InclusionProof trie.Proof
	// Providing the latest skipblock to retrieve the Merkle tree root.
	Latest skipchain.SkipBlock
	// Proving the path to the latest skipblock. The first ForwardLink starts
	// at the genesis block.
	Links []skipchain.ForwardLink
}

// Verify takes a trust anchor and verifies that the proof is valid for this
// skipchain. It verifies the forward-links from the genesis block up to the
// latest block, and that the merkle-root of the inclusion proof is stored in
// that block. If all verifications are correct, the error will be nil. It
// does not verify whether a certain key/value pair exists in the proof.
func (p Proof) Verify(anchor *skipchain.TrustAnchor) error {
	err := skipchain.VerifyChain(byzproof.Suite, anchor, p.Links, &p.Latest)
	if err != nil {
		return err
	}
	return p.VerifyInclusionProof(&p.Latest)
}

// VerifyFromBlock takes the genesis block of the chain, which must have been
// verified before, and uses it as the trust anchor of the proof.
func (p Proof) VerifyFromBlock(verifiedBlock *skipchain.SkipBlock, scheme skipchain.SignatureScheme) error {
	anchor, err := skipchain.NewTrustAnchor(verifiedBlock, scheme)
	if err != nil {
		return err
	}
	return p.Verify(anchor)
}

// VerifyInclusionProof verifies that the inclusion proof matches the skipblock
// given in parameter.
func (p Proof) VerifyInclusionProof(latest *skipchain.SkipBlock) error {
	if len(p.InclusionProof.Interiors) == 0 {
		return byzproof.NewError(byzproof.ErrMalformedProof, "no interior nodes")
	}
	header, err := DecodeDataHeader(latest.Data)
	if err != nil {
		return byzproof.NewErrorf(byzproof.ErrMalformedProof, "latest block: %v", err)
	}
	if !bytes.Equal(p.InclusionProof.GetRoot(), header.TrieRoot) {
		return byzproof.NewError(byzproof.ErrRootMismatch, "root of trie is not in skipblock")
	}
	log.Lvl3("trie root found in block", latest.Index)
	return nil
}

// Exists returns true if the key is in the inclusion proof, false if the
// proof shows its absence. The proof must have been verified before.
func (p Proof) Exists(key []byte) (bool, error) {
	return p.InclusionProof.Exists(key)
}

// Matches returns true if the inclusion proof carries a key/value pair. It is
// only a hint about the shape of the proof, use Exists to know whether a
// given key is in it.
func (p Proof) Matches() bool {
	return p.InclusionProof.Leaf != nil && len(p.InclusionProof.Leaf.Key) > 0
}

// KeyValue returns the key and the values stored in the proof. The caller
// should check both the key and the value because it should not trust the
// service to always return a key/value pair (via the proof) that corresponds
// to the request.
func (p Proof) KeyValue() (key []byte, value []byte, contractID string, darcID darc.ID, err error) {
	k, _ := p.InclusionProof.KeyValue()
	if len(k) == 0 {
		err = byzproof.NewError(byzproof.ErrNotFound, "proof of absence has no value")
		return
	}
	var s StateChangeBody
	s, err = p.body()
	if err != nil {
		return
	}
	key = k
	value = s.Value
	contractID = s.ContractID
	darcID = s.DarcID
	return
}

// Get returns the values associated with the given key. If the key is not in
// the proof, then an error is returned.
func (p Proof) Get(k []byte) (value []byte, contractID string, darcID darc.ID, err error) {
	if p.InclusionProof.Get(k) == nil {
		err = byzproof.NewError(byzproof.ErrNotFound, "key not in proof")
		return
	}
	var s StateChangeBody
	s, err = p.body()
	if err != nil {
		return
	}
	value = s.Value
	contractID = s.ContractID
	darcID = s.DarcID
	return
}

// Value returns the raw value of the instance in the proof.
func (p Proof) Value() ([]byte, error) {
	s, err := p.body()
	return s.Value, err
}

// ContractID returns the contract of the instance in the proof.
func (p Proof) ContractID() (string, error) {
	s, err := p.body()
	return s.ContractID, err
}

// DarcID returns the darc guarding the instance in the proof.
func (p Proof) DarcID() (darc.ID, error) {
	s, err := p.body()
	return s.DarcID, err
}

// IsContract verifies the proof and returns whether the instance in it has
// been created by the expected contract. Verification failures are returned
// as errors.
func (p Proof) IsContract(expected string, anchor *skipchain.TrustAnchor) (bool, error) {
	if err := p.Verify(anchor); err != nil {
		return false, err
	}
	cid, err := p.ContractID()
	if err != nil {
		return false, err
	}
	return cid == expected, nil
}

// VerifyAndDecode verifies the proof and its contractID, then tries to
// protobuf-decode the value to the given interface. It takes as an input the
// ContractID the instance should be a part of and a pre-allocated structure
// where the data of the instance is decoded into. It returns an error if the
// instance is not of type cid or if the decoding failed.
func (p Proof) VerifyAndDecode(anchor *skipchain.TrustAnchor, cid string, value interface{}) error {
	ok, err := p.IsContract(cid, anchor)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.New("not an instance of this contract")
	}
	buf, err := p.Value()
	if err != nil {
		return err
	}
	return protobuf.DecodeWithConstructors(buf, value, skipchain.Constructors(byzproof.Suite))
}

// Instance verifies the proof and returns the instance stored under key. It
// returns an error of kind byzproof.ErrNotFound if the proof shows the key is
// absent.
func (p Proof) Instance(anchor *skipchain.TrustAnchor, key []byte) (*Instance, error) {
	if err := p.Verify(anchor); err != nil {
		return nil, err
	}
	ok, err := p.Exists(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, byzproof.NewError(byzproof.ErrNotFound, "key is absent")
	}
	s, err := p.body()
	if err != nil {
		return nil, err
	}
	return &Instance{
		ID:         NewInstanceID(key),
		ContractID: s.ContractID,
		Value:      s.Value,
		DarcID:     s.DarcID,
		Version:    s.Version,
	}, nil
}

// Encode returns the protobuf representation of the proof, as sent by the
// nodes.
func (p Proof) Encode() ([]byte, error) {
	buf, err := protobuf.Encode(&p)
	if err != nil {
		return nil, xerrors.Errorf("encoding proof: %v", err)
	}
	return buf, nil
}

// DecodeProof reads a protobuf-encoded proof. The points of the rosters are
// decoded with the default suite, and every roster member must have one.
func DecodeProof(buf []byte) (*Proof, error) {
	p := &Proof{}
	err := protobuf.DecodeWithConstructors(buf, p, skipchain.Constructors(byzproof.Suite))
	if err != nil {
		return nil, byzproof.NewErrorf(byzproof.ErrMalformedProof, "decoding proof: %v", err)
	}
	if err := p.Latest.CheckRosters(); err != nil {
		return nil, byzproof.NewErrorf(byzproof.ErrMalformedProof, "latest block: %v", err)
	}
	for i, l := range p.Links {
		if err := l.NewRoster.Check(); err != nil {
			return nil, byzproof.NewErrorf(byzproof.ErrMalformedProof, "link %d: %v", i, err)
		}
	}
	return p, nil
}

// body decodes the value of the leaf.
func (p Proof) body() (StateChangeBody, error) {
	if !p.Matches() {
		return StateChangeBody{}, byzproof.NewError(byzproof.ErrNotFound, "proof of absence has no value")
	}
	s, err := decodeStateChangeBody(p.InclusionProof.Leaf.Value)
	if err != nil {
		return s, byzproof.NewErrorf(byzproof.ErrMalformedProof, "leaf value: %v", err)
	}
	return s, nil
}
