package skipchain

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/sign"
	"go.dedis.ch/kyber/v3/sign/bdn"
	"go.dedis.ch/kyber/v3/sign/bls"
	"golang.org/x/xerrors"
)

// SignatureScheme tells which aggregation is used for the collective
// signature of the forward-links of a chain.
type SignatureScheme uint32

const (
	// BlsScheme aggregates plain BLS signatures and public keys.
	BlsScheme SignatureScheme = iota
	// BdnScheme aggregates with coefficients that protect against rogue
	// public keys.
	BdnScheme
)

func (s SignatureScheme) String() string {
	switch s {
	case BlsScheme:
		return "bls"
	case BdnScheme:
		return "bdn"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// ParseScheme returns the scheme with the given name.
func ParseScheme(name string) (SignatureScheme, error) {
	switch name {
	case "", "bls":
		return BlsScheme, nil
	case "bdn":
		return BdnScheme, nil
	}
	return 0, xerrors.Errorf("unknown signature scheme %q", name)
}

// DefaultThreshold returns the number of signers needed out of n so that
// more than two thirds of the roster agreed.
func DefaultThreshold(n int) int {
	return n - (n-1)/3
}

// Verify checks a collective signature on msg. The signature is the
// aggregate point in G1 followed by the participation mask over publics.
func (s SignatureScheme) Verify(suite pairing.Suite, publics []kyber.Point, msg, sig []byte) error {
	if len(publics) == 0 {
		return xerrors.New("no public keys provided")
	}
	for i, p := range publics {
		if p == nil {
			return xerrors.Errorf("public key %d is missing", i)
		}
	}
	lenSig := suite.G1().PointLen()
	if len(sig) < lenSig {
		return xerrors.New("signature too short")
	}

	mask, err := sign.NewMask(suite, publics, nil)
	if err != nil {
		return xerrors.Errorf("creating mask: %v", err)
	}
	if err := mask.SetMask(sig[lenSig:]); err != nil {
		return xerrors.Errorf("invalid mask: %v", err)
	}
	if mask.CountEnabled() < DefaultThreshold(len(publics)) {
		return xerrors.Errorf("not enough signers: %d < %d",
			mask.CountEnabled(), DefaultThreshold(len(publics)))
	}

	switch s {
	case BlsScheme:
		agg := bls.AggregatePublicKeys(suite, participants(mask, publics)...)
		return bls.Verify(suite, agg, msg, sig[:lenSig])
	case BdnScheme:
		agg, err := bdn.AggregatePublicKeys(suite, mask)
		if err != nil {
			return xerrors.Errorf("aggregating public keys: %v", err)
		}
		return bdn.Verify(suite, agg, msg, sig[:lenSig])
	}
	return xerrors.Errorf("unknown signature scheme %d", uint32(s))
}

// Sign returns a collective signature of msg by all members that have a
// non-nil private key.
func (s SignatureScheme) Sign(suite pairing.Suite, publics []kyber.Point, privates []kyber.Scalar, msg []byte) ([]byte, error) {
	if len(privates) != len(publics) {
		return nil, xerrors.New("need one private entry per public key")
	}
	mask, err := sign.NewMask(suite, publics, nil)
	if err != nil {
		return nil, xerrors.Errorf("creating mask: %v", err)
	}

	var sigs [][]byte
	for i, priv := range privates {
		if priv == nil {
			continue
		}
		var sig []byte
		if s == BdnScheme {
			sig, err = bdn.Sign(suite, priv, msg)
		} else {
			sig, err = bls.Sign(suite, priv, msg)
		}
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
		if err := mask.SetBit(i, true); err != nil {
			return nil, err
		}
	}
	if len(sigs) == 0 {
		return nil, xerrors.New("no signers")
	}

	var agg []byte
	switch s {
	case BlsScheme:
		agg, err = bls.AggregateSignatures(suite, sigs...)
		if err != nil {
			return nil, err
		}
	case BdnScheme:
		point, err := bdn.AggregateSignatures(suite, sigs, mask)
		if err != nil {
			return nil, err
		}
		agg, err = point.MarshalBinary()
		if err != nil {
			return nil, err
		}
	default:
		return nil, xerrors.Errorf("unknown signature scheme %d", uint32(s))
	}
	return append(agg, mask.Mask()...), nil
}

// participants returns the publics whose bit is set in the mask.
func participants(mask *sign.Mask, publics []kyber.Point) []kyber.Point {
	buf := mask.Mask()
	var res []kyber.Point
	for i, p := range publics {
		if buf[i>>3]&(byte(1)<<uint(i&7)) != 0 {
			res = append(res, p)
		}
	}
	return res
}
