package skipchain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/protobuf"
)

func TestSkipBlockID(t *testing.T) {
	var id SkipBlockID
	require.True(t, id.IsNull())
	require.Equal(t, "Nil", id.Short())

	id = SkipBlockID{1, 2, 3}
	require.False(t, id.IsNull())
	require.Equal(t, "010203", id.Short())
	id = SkipBlockID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, "0102030405060708", id.Short())
	require.True(t, id.Equal(SkipBlockID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
	require.False(t, id.Equal(SkipBlockID{1, 2, 3}))
}

func TestSkipBlock_Hash(t *testing.T) {
	ro := genRoster(3)
	sb := genBlock(0, nil, ro.Roster, "data")
	require.True(t, sb.CalculateHash().Equal(sb.Hash))
	require.True(t, sb.SkipChainID().Equal(sb.Hash))

	sb1 := sb.Copy()
	sb1.Index = 1
	require.False(t, sb1.CalculateHash().Equal(sb.Hash))

	sb1 = sb.Copy()
	sb1.Data = []byte("other")
	require.False(t, sb1.CalculateHash().Equal(sb.Hash))

	sb1 = sb.Copy()
	sb1.Roster = genRoster(3).Roster
	require.False(t, sb1.CalculateHash().Equal(sb.Hash))

	// Forward-links are not part of the hash.
	sb1 = sb.Copy()
	sb1.AddForward(&ForwardLink{From: sb.Hash, To: SkipBlockID{1}})
	require.True(t, sb1.CalculateHash().Equal(sb.Hash))

	sb2 := genBlock(1, sb.Hash, ro.Roster, "data")
	require.True(t, sb2.SkipChainID().Equal(sb.Hash))
}

func TestSkipBlock_Copy(t *testing.T) {
	ro := genRoster(2)
	sb := genBlock(0, nil, ro.Roster, "data")
	sb.AddForward(&ForwardLink{From: sb.Hash, To: SkipBlockID{1, 2}})
	sb1 := sb.Copy()
	sb1.Data[0] = 'x'
	sb1.ForwardLink[0].To[0] = 3
	sb1.Roster.List = sb1.Roster.List[:1]
	require.Equal(t, "data", string(sb.Data))
	require.Equal(t, byte(1), sb.ForwardLink[0].To[0])
	require.Equal(t, 2, len(sb.Roster.List))
	require.Contains(t, sb.Sprint(true), "Index: 0")
}

func TestRoster(t *testing.T) {
	ro := genRoster(3)
	require.Equal(t, 3, len(ro.Publics()))
	require.True(t, ro.Equal(ro.Roster))
	require.False(t, ro.Equal(genRoster(3).Roster))
	require.False(t, ro.Equal(nil))

	sub := &Roster{List: ro.List[:2]}
	require.False(t, ro.Equal(sub))
	require.NotEqual(t, ro.Hash(), sub.Hash())
	require.Nil(t, (*Roster)(nil).Publics())
	require.NoError(t, ro.Check())
	require.NoError(t, (*Roster)(nil).Check())

	holes := &Roster{List: []*ServerIdentity{ro.List[0], nil, {Address: "tls://10.0.0.1:7770"}}}
	require.Error(t, holes.Check())
	require.Error(t, (&Roster{List: holes.List[2:]}).Check())
	require.NotPanics(t, func() {
		require.Equal(t, 3, len(holes.Publics()))
		holes.Hash()
		genBlock(1, nil, holes, "holes")
	})
}

func TestForwardLink_Hash(t *testing.T) {
	r0, r1 := genRoster(2), genRoster(2)
	from := genBlock(0, nil, r0.Roster, "a")
	to := genBlock(1, from.Hash, r0.Roster, "b")

	fl := NewForwardLink(from, to)
	require.Nil(t, fl.NewRoster)
	require.False(t, fl.IsEmpty())

	to2 := genBlock(1, from.Hash, r1.Roster, "b")
	fl2 := NewForwardLink(from, to2)
	require.NotNil(t, fl2.NewRoster)

	// The new roster is part of what gets signed.
	h := fl2.Hash()
	fl2.NewRoster = genRoster(2).Roster
	require.NotEqual(t, h, fl2.Hash())
	fl2.NewRoster = nil
	require.NotEqual(t, h, fl2.Hash())

	require.True(t, (&ForwardLink{From: from.Hash}).IsEmpty())
}

func TestSkipBlock_Encoding(t *testing.T) {
	r0, r1 := genRoster(3), genRoster(2)
	from := genBlock(0, nil, r0.Roster, "a")
	to := genBlock(1, from.Hash, r1.Roster, "b")
	fl := signedLink(t, BlsScheme, from, to, r0)
	from.AddForward(&fl)

	buf, err := protobuf.Encode(from)
	require.NoError(t, err)
	sb, err := DecodeSkipBlock(buf)
	require.NoError(t, err)
	require.True(t, sb.CalculateHash().Equal(from.Hash))
	require.True(t, sb.Roster.Equal(r0.Roster))
	require.Equal(t, 1, len(sb.ForwardLink))
	require.True(t, sb.ForwardLink[0].NewRoster.Equal(r1.Roster))
	require.NoError(t, sb.ForwardLink[0].Verify(tSuite, r0.Publics(), BlsScheme))

	_, err = DecodeSkipBlock([]byte{1, 2, 3})
	require.Error(t, err)
}
