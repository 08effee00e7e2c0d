package skipchain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"reflect"

	"go.dedis.ch/byzproof"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// SkipBlockID represents the Hash of the SkipBlock
type SkipBlockID []byte

// IsNull returns true if the ID is undefined
func (sbid SkipBlockID) IsNull() bool {
	return len(sbid) == 0
}

// Short returns only the 8 first bytes of the ID as a hex-encoded string.
func (sbid SkipBlockID) Short() string {
	if sbid.IsNull() {
		return "Nil"
	}
	if len(sbid) < 8 {
		return fmt.Sprintf("%x", []byte(sbid))
	}
	return fmt.Sprintf("%x", []byte(sbid[0:8]))
}

// Equal returns true if it's the same ID.
func (sbid SkipBlockID) Equal(other SkipBlockID) bool {
	return bytes.Equal([]byte(sbid), []byte(other))
}

// ServerIdentity is a member of a roster. Only its public key takes part in
// the verification of forward-links, the address is informative.
type ServerIdentity struct {
	Address string
	Public  kyber.Point
}

// Roster is the ordered list of the nodes responsible for signing
// forward-links. The order defines the bits of the participation mask.
type Roster struct {
	List []*ServerIdentity
}

// NewRoster returns a roster with one entry per public key. Addresses are
// derived from the position in the list.
func NewRoster(publics []kyber.Point) *Roster {
	r := &Roster{}
	for i, p := range publics {
		r.List = append(r.List, &ServerIdentity{
			Address: fmt.Sprintf("tls://127.0.0.1:%d", 7770+2*i),
			Public:  p,
		})
	}
	return r
}

// Publics returns the public keys of the roster, in order.
func (ro *Roster) Publics() []kyber.Point {
	if ro == nil {
		return nil
	}
	res := make([]kyber.Point, len(ro.List))
	for i, si := range ro.List {
		if si != nil {
			res[i] = si.Public
		}
	}
	return res
}

// Check returns an error if a member of the roster is missing or has no
// public key. A nil roster has nothing to check.
func (ro *Roster) Check() error {
	if ro == nil {
		return nil
	}
	for i, si := range ro.List {
		if si == nil {
			return xerrors.Errorf("roster member %d is missing", i)
		}
		if si.Public == nil {
			return xerrors.Errorf("roster member %d has no public key", i)
		}
	}
	return nil
}

// Hash returns a digest of the roster that covers the addresses and the
// public keys of all members.
func (ro *Roster) Hash() []byte {
	h := sha256.New()
	for _, si := range ro.List {
		if si == nil {
			continue
		}
		h.Write([]byte(si.Address))
		if si.Public != nil {
			_, err := si.Public.MarshalTo(h)
			if err != nil {
				panic("couldn't marshal public key: " + err.Error())
			}
		}
	}
	return h.Sum(nil)
}

// Equal returns true if both rosters hold the same members in the same order.
func (ro *Roster) Equal(other *Roster) bool {
	if ro == nil || other == nil {
		return ro == other
	}
	return bytes.Equal(ro.Hash(), other.Hash())
}

// SkipBlock is a block of the skipchain. Only the fields that take part in
// the hash are kept, together with the forward-links pointing to later
// blocks.
type SkipBlock struct {
	// Index of the block in the chain. Index == 0 -> genesis-block.
	Index int
	// Height of that SkipBlock, starts at 1.
	Height int
	// GenesisID is the ID of the genesis-block. For the genesis-block, this
	// is empty.
	GenesisID SkipBlockID
	// Roster holds the nodes responsible for this block.
	Roster *Roster
	// Data is any data to be stored in that SkipBlock. For a ByzCoin chain
	// this is the encoded DataHeader.
	Data []byte
	// Hash is calculated on all previous values.
	Hash SkipBlockID
	// ForwardLink are the links to later blocks, one per level.
	ForwardLink []*ForwardLink
}

// NewSkipBlock pre-initialises a block so it can be filled in.
func NewSkipBlock() *SkipBlock {
	return &SkipBlock{
		Height: 1,
	}
}

// CalculateHash hashes all fixed fields of the skipblock.
func (sb *SkipBlock) CalculateHash() SkipBlockID {
	hash := sha256.New()
	for _, i := range []int{sb.Index, sb.Height} {
		if err := binary.Write(hash, binary.LittleEndian, int64(i)); err != nil {
			panic("error writing to hash:" + err.Error())
		}
	}
	hash.Write(sb.GenesisID)
	hash.Write(sb.Data)
	if sb.Roster != nil {
		for _, pub := range sb.Roster.Publics() {
			if pub == nil {
				continue
			}
			_, err := pub.MarshalTo(hash)
			if err != nil {
				panic("couldn't marshal public key: " + err.Error())
			}
		}
	}
	return hash.Sum(nil)
}

// UpdateHash sets the Hash field to the calculated hash.
func (sb *SkipBlock) UpdateHash() SkipBlockID {
	sb.Hash = sb.CalculateHash()
	return sb.Hash
}

// SkipChainID is the hash of the genesis-block.
func (sb *SkipBlock) SkipChainID() SkipBlockID {
	if sb.Index == 0 {
		return sb.Hash
	}
	return sb.GenesisID
}

// AddForward appends a forward-link to the block.
func (sb *SkipBlock) AddForward(fl *ForwardLink) {
	sb.ForwardLink = append(sb.ForwardLink, fl)
}

// Copy makes a deep copy of the SkipBlock
func (sb *SkipBlock) Copy() *SkipBlock {
	if sb == nil {
		return nil
	}
	b := *sb
	b.GenesisID = append(SkipBlockID{}, sb.GenesisID...)
	b.Data = append([]byte{}, sb.Data...)
	b.Hash = append(SkipBlockID{}, sb.Hash...)
	if sb.Roster != nil {
		b.Roster = &Roster{List: append([]*ServerIdentity{}, sb.Roster.List...)}
	}
	b.ForwardLink = make([]*ForwardLink, len(sb.ForwardLink))
	for i, fl := range sb.ForwardLink {
		b.ForwardLink[i] = fl.Copy()
	}
	return &b
}

// Short returns only the 8 first bytes of the hash as hex-encoded string.
func (sb *SkipBlock) Short() string {
	return sb.Hash.Short()
}

// Sprint returns a string representation of the block.
func (sb *SkipBlock) Sprint(short bool) string {
	hash := hex.EncodeToString(sb.Hash)
	if short {
		hash = sb.Short()
	}
	return fmt.Sprintf("Index: %d, Height: %d, Hash: %s, Forward: %d",
		sb.Index, sb.Height, hash, len(sb.ForwardLink))
}

// ForwardLink can be used to jump from old blocks to newer blocks. Depending
// on the BaseHeight and MaximumHeight, one block can have more than one
// forward-link.
type ForwardLink struct {
	// From - where this forward link comes from
	From SkipBlockID
	// To - where this forward link points to
	To SkipBlockID
	// NewRoster is only set to non-nil if the From block has a different
	// roster from the To-block.
	NewRoster *Roster
	// Signature is calculated on the
	// sha256(From.Hash()|To.Hash()|NewRoster)
	// In the case that NewRoster is nil, the signature is only calculated on
	// the sha256(From.Hash()|To.Hash())
	Signature ForwardLinkSignature
}

// ForwardLinkSignature holds the message that has been signed and the
// collective signature, which is the aggregate signature followed by the
// participation mask.
type ForwardLinkSignature struct {
	Msg []byte
	Sig []byte
}

// NewForwardLink creates a new forward link between two skipblocks. The
// roster of the target is bound to the link if it differs from the one of
// the origin.
func NewForwardLink(from, to *SkipBlock) *ForwardLink {
	fl := &ForwardLink{
		From: from.Hash,
		To:   to.Hash,
	}
	if !from.Roster.Equal(to.Roster) {
		fl.NewRoster = to.Roster
	}
	return fl
}

// Hash returns the digest that the roster signs.
func (fl *ForwardLink) Hash() []byte {
	hash := sha256.New()
	hash.Write(fl.From)
	hash.Write(fl.To)
	if fl.NewRoster != nil {
		hash.Write(fl.NewRoster.Hash())
	}
	return hash.Sum(nil)
}

// IsEmpty indicates if the forward link is a placeholder without target.
func (fl *ForwardLink) IsEmpty() bool {
	return fl == nil || len(fl.To) == 0
}

// Copy makes a deep copy of a forward-link
func (fl *ForwardLink) Copy() *ForwardLink {
	if fl == nil {
		return nil
	}
	var ro *Roster
	if fl.NewRoster != nil {
		ro = &Roster{List: append([]*ServerIdentity{}, fl.NewRoster.List...)}
	}
	return &ForwardLink{
		From:      append(SkipBlockID{}, fl.From...),
		To:        append(SkipBlockID{}, fl.To...),
		NewRoster: ro,
		Signature: ForwardLinkSignature{
			Msg: append([]byte{}, fl.Signature.Msg...),
			Sig: append([]byte{}, fl.Signature.Sig...),
		},
	}
}

// Verify checks the signature of the forward-link against the given
// publics, which are the ones of the roster responsible for the From block.
func (fl *ForwardLink) Verify(suite pairing.Suite, publics []kyber.Point, scheme SignatureScheme) error {
	if len(fl.Signature.Sig) == 0 {
		return xerrors.New("no signature present")
	}
	if !bytes.Equal(fl.Hash(), fl.Signature.Msg) {
		return xerrors.New("wrong hash of forward link")
	}
	return scheme.Verify(suite, publics, fl.Signature.Msg, fl.Signature.Sig)
}

// Sign collectively signs the forward-link. Private keys are given in the
// order of the publics, a nil entry marks a member that does not sign.
func (fl *ForwardLink) Sign(suite pairing.Suite, scheme SignatureScheme, publics []kyber.Point, privates []kyber.Scalar) error {
	msg := fl.Hash()
	sig, err := scheme.Sign(suite, publics, privates, msg)
	if err != nil {
		return xerrors.Errorf("signing forward link: %v", err)
	}
	fl.Signature = ForwardLinkSignature{Msg: msg, Sig: sig}
	return nil
}

// Constructors returns the protobuf constructors needed to decode blocks,
// links and rosters holding points of the given suite.
func Constructors(suite pairing.Suite) protobuf.Constructors {
	return protobuf.Constructors{
		reflect.TypeOf((*kyber.Point)(nil)).Elem(): func() interface{} { return suite.G2().Point() },
	}
}

// CheckRosters returns an error if the roster of the block, or a roster
// announced by one of its forward-links, has a missing member or key.
func (sb *SkipBlock) CheckRosters() error {
	if err := sb.Roster.Check(); err != nil {
		return err
	}
	for i, fl := range sb.ForwardLink {
		if fl == nil {
			return xerrors.Errorf("forward link %d is missing", i)
		}
		if err := fl.NewRoster.Check(); err != nil {
			return xerrors.Errorf("forward link %d: %v", i, err)
		}
	}
	return nil
}

// DecodeSkipBlock reads a protobuf-encoded skipblock using the default
// suite for its points. Blocks with incomplete rosters are rejected.
func DecodeSkipBlock(buf []byte) (*SkipBlock, error) {
	sb := &SkipBlock{}
	err := protobuf.DecodeWithConstructors(buf, sb, Constructors(byzproof.Suite))
	if err != nil {
		return nil, byzproof.NewErrorf(byzproof.ErrMalformedProof, "decoding skipblock: %v", err)
	}
	if err := sb.CheckRosters(); err != nil {
		return nil, byzproof.NewErrorf(byzproof.ErrMalformedProof, "decoding skipblock: %v", err)
	}
	return sb, nil
}
