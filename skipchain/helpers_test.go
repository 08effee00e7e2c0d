package skipchain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/byzproof"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/log"
)

var tSuite = byzproof.Suite

func TestMain(m *testing.M) {
	log.MainTest(m)
}

// testRoster is a roster together with the private keys of its members.
type testRoster struct {
	*Roster
	privates []kyber.Scalar
}

func genRoster(n int) testRoster {
	tr := testRoster{}
	var publics []kyber.Point
	for i := 0; i < n; i++ {
		priv, pub := bls.NewKeyPair(tSuite, random.New())
		tr.privates = append(tr.privates, priv)
		publics = append(publics, pub)
	}
	tr.Roster = NewRoster(publics)
	return tr
}

// signers returns the private keys of the first n members, the others
// don't sign.
func (tr testRoster) signers(n int) []kyber.Scalar {
	res := make([]kyber.Scalar, len(tr.privates))
	copy(res, tr.privates[:n])
	return res
}

func genBlock(index int, genesis SkipBlockID, ro *Roster, data string) *SkipBlock {
	sb := NewSkipBlock()
	sb.Index = index
	sb.GenesisID = genesis
	sb.Roster = ro
	sb.Data = []byte(data)
	sb.UpdateHash()
	return sb
}

func signedLink(t *testing.T, scheme SignatureScheme, from, to *SkipBlock, signer testRoster) ForwardLink {
	fl := NewForwardLink(from, to)
	require.NoError(t, fl.Sign(tSuite, scheme, signer.Publics(), signer.privates))
	return *fl
}

// testChain is genesis -> b1 -> b2 where b2 hands over to a new roster.
type testChain struct {
	r0, r1  testRoster
	genesis *SkipBlock
	b1, b2  *SkipBlock
	links   []ForwardLink
	anchor  *TrustAnchor
	scheme  SignatureScheme
}

func newTestChain(t *testing.T, scheme SignatureScheme) *testChain {
	tc := &testChain{
		r0:     genRoster(4),
		r1:     genRoster(3),
		scheme: scheme,
	}
	tc.genesis = genBlock(0, nil, tc.r0.Roster, "genesis")
	tc.b1 = genBlock(1, tc.genesis.Hash, tc.r0.Roster, "one")
	tc.b2 = genBlock(2, tc.genesis.Hash, tc.r1.Roster, "two")
	tc.links = []ForwardLink{
		signedLink(t, scheme, tc.genesis, tc.b1, tc.r0),
		signedLink(t, scheme, tc.b1, tc.b2, tc.r0),
	}
	var err error
	tc.anchor, err = NewTrustAnchor(tc.genesis, scheme)
	require.NoError(t, err)
	return tc
}
