/*
Package byzproof holds what is shared by the packages verifying ByzCoin
proofs: the error kinds and the pairing suite of the validators.

A proof returned by a ByzCoin node is checked in two steps. First the chain of
forward-links is followed from a genesis block the client trusts up to the
block holding the state root. Then the inclusion proof is walked from that
root down to a leaf or an empty node, which tells whether the key is present.

	p, err := byzcoin.DecodeProof(buf)
	...
	err = p.Verify(anchor)
	...
	ok, err := p.Exists(key)

See the byzcoin, byzcoin/trie and skipchain packages for the details, and
byzcoin/bcverify for a command-line tool doing the same.
*/
package byzproof
