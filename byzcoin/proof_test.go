package byzcoin

import (
	"crypto/sha256"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/byzproof"
	"go.dedis.ch/byzproof/byzcoin/trie"
	"go.dedis.ch/byzproof/darc"
	"go.dedis.ch/byzproof/skipchain"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

const testContract = "value"

// testValue is what the instances of the test contract hold.
type testValue struct {
	Name  string
	Owner kyber.Point
}

func TestNewProof(t *testing.T) {
	s := createSC(t, skipchain.BlsScheme)
	defer s.Close()

	_, err := NewProof(s.t, s.s, skipchain.SkipBlockID{}, s.key)
	require.Error(t, err)
	_, err = NewProof(s.t, s.s, s.sb1.Hash, s.key)
	require.Error(t, err)

	p, err := NewProof(s.t, s.s, s.genesis.Hash, s.absent)
	require.NoError(t, err)
	require.False(t, p.Matches())
	require.Equal(t, 2, len(p.Links))
	require.True(t, p.Latest.Hash.Equal(s.sb2.Hash))

	p, err = NewProof(s.t, s.s, s.genesis.Hash, s.key)
	require.NoError(t, err)
	require.True(t, p.Matches())

	// With a link jumping over sb1, the proof gets shorter.
	require.NoError(t, s.s.AddForwardLink(s.link(t, s.genesis, s.sb2, s.r0)))
	p, err = NewProof(s.t, s.s, s.genesis.Hash, s.key)
	require.NoError(t, err)
	require.Equal(t, 1, len(p.Links))
	require.NoError(t, p.Verify(s.anchor))

	// The trie moved on but no block holds its root yet.
	require.NoError(t, s.t.Set(key("other"), []byte("other")))
	_, err = NewProof(s.t, s.s, s.genesis.Hash, s.key)
	require.Error(t, err)
}

func TestProof_Verify(t *testing.T) {
	for _, scheme := range []skipchain.SignatureScheme{skipchain.BlsScheme, skipchain.BdnScheme} {
		t.Run(scheme.String(), func(t *testing.T) {
			s := createSC(t, scheme)
			defer s.Close()

			p, err := NewProof(s.t, s.s, s.genesis.Hash, s.key)
			require.NoError(t, err)
			require.NoError(t, p.Verify(s.anchor))
			require.NoError(t, p.VerifyFromBlock(s.genesis, scheme))

			ok, err := p.Exists(s.key)
			require.NoError(t, err)
			require.True(t, ok)
			// The path of absent leaves the one of the proof.
			_, err = p.Exists(s.absent)
			require.True(t, xerrors.Is(err, byzproof.ErrMalformedProof))

			k, v, cid, did, err := p.KeyValue()
			require.NoError(t, err)
			require.Equal(t, s.key, k)
			require.Equal(t, s.value, v)
			require.Equal(t, testContract, cid)
			require.True(t, did.Equal(s.darcID))

			v, cid, did, err = p.Get(s.key)
			require.NoError(t, err)
			require.Equal(t, s.value, v)
			require.Equal(t, testContract, cid)
			require.True(t, did.Equal(s.darcID))
			_, _, _, err = p.Get(s.absent)
			require.True(t, xerrors.Is(err, byzproof.ErrNotFound))

			v, err = p.Value()
			require.NoError(t, err)
			require.Equal(t, s.value, v)
			cid, err = p.ContractID()
			require.NoError(t, err)
			require.Equal(t, testContract, cid)
			did, err = p.DarcID()
			require.NoError(t, err)
			require.True(t, did.Equal(s.darcID))
		})
	}
}

func TestProof_VerifyFail(t *testing.T) {
	s := createSC(t, skipchain.BlsScheme)
	defer s.Close()
	p, err := NewProof(s.t, s.s, s.genesis.Hash, s.key)
	require.NoError(t, err)

	// Another chain.
	other := createSC(t, skipchain.BlsScheme)
	defer other.Close()
	err = p.Verify(other.anchor)
	require.True(t, xerrors.Is(err, byzproof.ErrChainBroken))
	require.Contains(t, err.Error(), "not properly evolved")

	err = p.VerifyFromBlock(s.sb1, skipchain.BlsScheme)
	require.True(t, xerrors.Is(err, byzproof.ErrInvalidInput))

	// Inclusion proof of another trie.
	p2 := *p
	otherProof, err := other.t.GetProof(s.key)
	require.NoError(t, err)
	p2.InclusionProof = *otherProof
	err = p2.Verify(s.anchor)
	require.True(t, xerrors.Is(err, byzproof.ErrRootMismatch))

	p2.InclusionProof = trie.Proof{}
	err = p2.Verify(s.anchor)
	require.True(t, xerrors.Is(err, byzproof.ErrMalformedProof))

	// The latest block must be the one the links point to.
	p2 = *p
	p2.Latest = *s.sb1
	err = p2.Verify(s.anchor)
	require.True(t, xerrors.Is(err, byzproof.ErrChainBroken))

	// A header that can't be read is caught after the chain is verified.
	bad := s.addBlock(t, []byte{1, 2, 3}, s.r1)
	p2, err = proofUpTo(s, bad)
	require.NoError(t, err)
	err = p2.Verify(s.anchor)
	require.True(t, xerrors.Is(err, byzproof.ErrMalformedProof))
}

func TestProof_Absence(t *testing.T) {
	s := createSC(t, skipchain.BlsScheme)
	defer s.Close()
	p, err := NewProof(s.t, s.s, s.genesis.Hash, s.absent)
	require.NoError(t, err)
	require.NoError(t, p.Verify(s.anchor))

	ok, err := p.Exists(s.absent)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = p.Value()
	require.True(t, xerrors.Is(err, byzproof.ErrNotFound))
	_, err = p.ContractID()
	require.True(t, xerrors.Is(err, byzproof.ErrNotFound))
	_, err = p.DarcID()
	require.True(t, xerrors.Is(err, byzproof.ErrNotFound))
	_, _, _, _, err = p.KeyValue()
	require.True(t, xerrors.Is(err, byzproof.ErrNotFound))
	_, err = p.Instance(s.anchor, s.absent)
	require.True(t, xerrors.Is(err, byzproof.ErrNotFound))

	_, err = p.Exists(nil)
	require.True(t, xerrors.Is(err, byzproof.ErrInvalidInput))
}

func TestProof_IsContract(t *testing.T) {
	s := createSC(t, skipchain.BlsScheme)
	defer s.Close()
	p, err := NewProof(s.t, s.s, s.genesis.Hash, s.key)
	require.NoError(t, err)

	ok, err := p.IsContract(testContract, s.anchor)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = p.IsContract("coin", s.anchor)
	require.NoError(t, err)
	require.False(t, ok)

	other := createSC(t, skipchain.BlsScheme)
	defer other.Close()
	_, err = p.IsContract(testContract, other.anchor)
	require.True(t, xerrors.Is(err, byzproof.ErrChainBroken))

	var tv testValue
	require.NoError(t, p.VerifyAndDecode(s.anchor, testContract, &tv))
	require.Equal(t, "first", tv.Name)
	require.True(t, tv.Owner.Equal(s.r0.Publics()[0]))
	require.Error(t, p.VerifyAndDecode(s.anchor, "coin", &tv))
	require.Error(t, p.VerifyAndDecode(other.anchor, testContract, &tv))
}

func TestProof_Instance(t *testing.T) {
	s := createSC(t, skipchain.BdnScheme)
	defer s.Close()
	p, err := NewProof(s.t, s.s, s.genesis.Hash, s.key)
	require.NoError(t, err)

	inst, err := p.Instance(s.anchor, s.key)
	require.NoError(t, err)
	require.Equal(t, NewInstanceID(s.key), inst.ID)
	require.Equal(t, testContract, inst.ContractID)
	require.Equal(t, s.value, inst.Value)
	require.True(t, inst.DarcID.Equal(s.darcID))
	require.Equal(t, uint64(1), inst.Version)
	require.Contains(t, inst.String(), testContract)

	// The proof is for s.key, a server can't pass it off for another key.
	_, err = p.Instance(s.anchor, s.absent)
	require.Error(t, err)
}

func TestProof_Encoding(t *testing.T) {
	s := createSC(t, skipchain.BlsScheme)
	defer s.Close()
	p, err := NewProof(s.t, s.s, s.genesis.Hash, s.key)
	require.NoError(t, err)

	buf, err := p.Encode()
	require.NoError(t, err)
	p2, err := DecodeProof(buf)
	require.NoError(t, err)
	require.NoError(t, p2.Verify(s.anchor))
	ok, err := p2.Exists(s.key)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = DecodeProof([]byte{1, 2, 3})
	require.True(t, xerrors.Is(err, byzproof.ErrMalformedProof))

	// A latest block claiming the genesis id with a keyless roster member.
	p.Latest = skipchain.SkipBlock{
		Hash: s.genesis.Hash,
		Roster: &skipchain.Roster{List: []*skipchain.ServerIdentity{
			{Address: "tls://10.0.0.1:7770"}}},
	}
	p.Links = nil
	buf, err = p.Encode()
	require.NoError(t, err)
	_, err = DecodeProof(buf)
	require.True(t, xerrors.Is(err, byzproof.ErrMalformedProof))
	require.NotPanics(t, func() {
		err = p.Verify(s.anchor)
	})
	require.True(t, xerrors.Is(err, byzproof.ErrMalformedProof))
}

// The roster that created the chain signs both links, the second one
// announcing the roster of the latest block, which holds "k" in a trie
// with a single interior node.
func TestProof_RosterHandover(t *testing.T) {
	r0, r1 := genRoster(4), genRoster(3)
	tr, err := trie.NewTrie(trie.NewMemDB(), []byte("nonce"))
	require.NoError(t, err)
	body, err := NewStateChangeBody(Create, testContract, nil, []byte("v"), 0).Encode()
	require.NoError(t, err)
	require.NoError(t, tr.Set([]byte("k"), body))
	header, err := DataHeader{TrieRoot: tr.GetRoot(), Version: 1}.Encode()
	require.NoError(t, err)

	block := func(index int, genesis skipchain.SkipBlockID, ro testRoster, data []byte) *skipchain.SkipBlock {
		sb := skipchain.NewSkipBlock()
		sb.Index = index
		sb.GenesisID = genesis
		sb.Roster = ro.Roster
		sb.Data = data
		sb.UpdateHash()
		return sb
	}
	g := block(0, nil, r0, []byte("genesis"))
	b1 := block(1, g.Hash, r0, []byte("one"))
	b2 := block(2, g.Hash, r1, header)

	l1 := skipchain.NewForwardLink(g, b1)
	require.Nil(t, l1.NewRoster)
	require.NoError(t, l1.Sign(byzproof.Suite, skipchain.BlsScheme, r0.Publics(), r0.privates))
	l2 := skipchain.NewForwardLink(b1, b2)
	require.True(t, l2.NewRoster.Equal(r1.Roster))
	require.NoError(t, l2.Sign(byzproof.Suite, skipchain.BlsScheme, r0.Publics(), r0.privates))

	pr, err := tr.GetProof([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, 1, len(pr.Interiors))
	p := Proof{
		InclusionProof: *pr,
		Latest:         *b2,
		Links:          []skipchain.ForwardLink{*l1, *l2},
	}

	anchor, err := skipchain.NewTrustAnchor(g, skipchain.BlsScheme)
	require.NoError(t, err)
	require.NoError(t, p.Verify(anchor))
	ok, err := p.Exists([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err := p.Value()
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

// key returns a 32-byte key, as used for instance ids.
func key(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}

// flip returns a copy of buf with the bits of mask flipped in byte i.
func flip(buf []byte, i int, mask byte) []byte {
	res := append([]byte{}, buf...)
	res[i] ^= mask
	return res
}

type testRoster struct {
	*skipchain.Roster
	privates []kyber.Scalar
}

func genRoster(n int) testRoster {
	tr := testRoster{}
	var publics []kyber.Point
	for i := 0; i < n; i++ {
		priv, pub := bls.NewKeyPair(byzproof.Suite, random.New())
		tr.privates = append(tr.privates, priv)
		publics = append(publics, pub)
	}
	tr.Roster = skipchain.NewRoster(publics)
	return tr
}

type sc struct {
	t      *trie.Trie             // the global state, holding key and its value
	s      *skipchain.SkipBlockDB // a usable skipchain DB to store blocks
	fname  string                 // the file of the bolt database
	scheme skipchain.SignatureScheme
	r0, r1 testRoster // r0 creates the chain, r1 takes over in sb2
	// genesis -> sb1 -> sb2. The genesis block holds the empty trie, sb1
	// holds key and sb2 has the final state of the trie.
	genesis, sb1, sb2 *skipchain.SkipBlock
	latest            *skipchain.SkipBlock
	anchor            *skipchain.TrustAnchor
	key               []byte // key stored in sb1
	value             []byte // value stored under key
	absent            []byte // key never stored
	darcID            darc.ID
}

// createSC creates an sc structure ready to be used in tests.
func createSC(t *testing.T, scheme skipchain.SignatureScheme) (s *sc) {
	s = &sc{scheme: scheme}
	f, err := ioutil.TempFile("", "byzproof-test")
	require.NoError(t, err)
	s.fname = f.Name()
	require.NoError(t, f.Close())
	db, err := bolt.Open(s.fname, 0600, nil)
	require.NoError(t, err)

	s.s, err = skipchain.NewSkipBlockDB(db, []byte("skipblock-test"))
	require.NoError(t, err)
	tdb, err := trie.NewDiskDB(db, []byte("trie-test"))
	require.NoError(t, err)
	s.t, err = trie.NewTrie(tdb, random.Bits(256, true, random.New()))
	require.NoError(t, err)

	s.r0, s.r1 = genRoster(4), genRoster(3)
	// Only the first bit of absent differs from key, so its path ends in
	// the empty sibling of the subtree holding all keys.
	s.key = key("key")
	s.absent = flip(s.key, 0, 0x80)
	s.darcID = darc.ID(key("darc"))
	s.value, err = protobuf.Encode(&testValue{Name: "first", Owner: s.r0.Publics()[0]})
	require.NoError(t, err)

	s.genesis = s.addBlock(t, s.header(t), s.r0)
	s.anchor, err = skipchain.NewTrustAnchor(s.genesis, scheme)
	require.NoError(t, err)

	body, err := NewStateChangeBody(Create, testContract, s.darcID, s.value, 1).Encode()
	require.NoError(t, err)
	require.NoError(t, s.t.Set(s.key, body))
	s.sb1 = s.addBlock(t, s.header(t), s.r0)

	body, err = NewStateChangeBody(Create, "coin", s.darcID, []byte{1}, 0).Encode()
	require.NoError(t, err)
	require.NoError(t, s.t.Set(flip(s.key, 1, 0xff), body))
	s.sb2 = s.addBlock(t, s.header(t), s.r1)
	return
}

func (s *sc) Close() {
	s.s.Close()
	os.Remove(s.fname)
}

func (s *sc) header(t *testing.T) []byte {
	buf, err := DataHeader{TrieRoot: s.t.GetRoot(), Version: 1}.Encode()
	require.NoError(t, err)
	return buf
}

// addBlock appends a block with the given data and roster to the chain,
// linked from the previous one.
func (s *sc) addBlock(t *testing.T, data []byte, ro testRoster) *skipchain.SkipBlock {
	sb := skipchain.NewSkipBlock()
	sb.Roster = ro.Roster
	sb.Data = data
	if s.latest != nil {
		sb.Index = s.latest.Index + 1
		sb.GenesisID = s.genesis.Hash
	}
	sb.UpdateHash()
	_, err := s.s.Store(sb)
	require.NoError(t, err)
	if s.latest != nil {
		signer := s.r0
		if !s.latest.Roster.Equal(s.r0.Roster) {
			signer = s.r1
		}
		require.NoError(t, s.s.AddForwardLink(s.link(t, s.latest, sb, signer)))
	}
	s.latest = sb
	return sb
}

func (s *sc) link(t *testing.T, from, to *skipchain.SkipBlock, signer testRoster) *skipchain.ForwardLink {
	fl := skipchain.NewForwardLink(from, to)
	require.NoError(t, fl.Sign(byzproof.Suite, s.scheme, signer.Publics(), signer.privates))
	return fl
}

// proofUpTo returns a proof for s.key whose latest block is sb, whatever
// the block holds.
func proofUpTo(s *sc, sb *skipchain.SkipBlock) (Proof, error) {
	pr, err := s.t.GetProof(s.key)
	if err != nil {
		return Proof{}, err
	}
	p := Proof{InclusionProof: *pr, Latest: *sb}
	for cur := s.s.GetByID(s.genesis.Hash); !cur.Hash.Equal(sb.Hash); {
		fl := cur.ForwardLink[0]
		p.Links = append(p.Links, *fl)
		cur = s.s.GetByID(fl.To)
	}
	return p, nil
}
