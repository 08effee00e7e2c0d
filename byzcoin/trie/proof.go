package trie

import (
	"bytes"

	"go.dedis.ch/byzproof"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// Proof is the path from the root of the trie down to the node where the
// key is stored, or to the node proving its absence. Exactly one of Leaf and
// Empty is set.
type Proof struct {
	Interiors []InteriorNode // the first one is the root
	Leaf      *LeafNode
	Empty     *EmptyNode
	Nonce     []byte

	hf kyber.HashFactory
}

// NewProof returns a proof ending in the given terminal node.
func NewProof(interiors []InteriorNode, term Terminal, nonce []byte) *Proof {
	p := &Proof{
		Interiors: interiors,
		Nonce:     nonce,
	}
	switch n := term.(type) {
	case *LeafNode:
		p.Leaf = n
	case *EmptyNode:
		p.Empty = n
	}
	return p
}

// UseHash sets the hash used to verify the nodes of the proof. The default
// is Sha256.
func (p *Proof) UseHash(hf kyber.HashFactory) {
	p.hf = hf
}

func (p *Proof) hash() kyber.HashFactory {
	if p.hf == nil {
		return Sha256
	}
	return p.hf
}

func (p *Proof) addInterior(node InteriorNode) {
	p.Interiors = append(p.Interiors, node)
}

// Terminal returns the node the proof ends in. It fails if the proof holds
// no terminal node or both kinds of them.
func (p *Proof) Terminal() (Terminal, error) {
	switch {
	case p.Leaf != nil && p.Empty != nil:
		return nil, byzproof.NewError(byzproof.ErrMalformedProof,
			"proof has both a leaf and an empty node")
	case p.Leaf != nil:
		return p.Leaf, nil
	case p.Empty != nil:
		return p.Empty, nil
	}
	return nil, byzproof.NewError(byzproof.ErrMalformedProof, "missing terminal node")
}

// GetRoot returns the root hash of the trie the proof was created from,
// or nil if the proof holds no interior node.
func (p *Proof) GetRoot() []byte {
	if len(p.Interiors) == 0 {
		return nil
	}
	return HashInterior(p.hash(), &p.Interiors[0])
}

// Match returns whether the proof holds a key. This is only a hint, it
// doesn't check any hash.
func (p *Proof) Match() bool {
	return p.Leaf != nil && len(p.Leaf.Key) > 0
}

// ExistsAt is like Exists, but first makes sure the proof starts at the given
// root.
func (p *Proof) ExistsAt(root []byte, key []byte) (bool, error) {
	if len(p.Interiors) == 0 {
		return false, byzproof.NewError(byzproof.ErrMalformedProof, "no interior nodes")
	}
	if !bytes.Equal(p.GetRoot(), root) {
		return false, byzproof.NewError(byzproof.ErrMalformedProof,
			"proof does not start at the given root")
	}
	return p.Exists(key)
}

// Exists checks the proof for inclusion or absence of key. It follows the
// hashes from the root down to the terminal node, where a bit of 1 in the key
// goes left and a bit of 0 goes right. It returns true only if the terminal
// node is a leaf holding exactly this key. An error is returned if the proof
// is not consistent; a terminal node that doesn't hash to the last link of the
// chain is only a proof of nothing, and reported as absence.
func (p *Proof) Exists(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, byzproof.NewError(byzproof.ErrInvalidInput, "key is nil")
	}
	if len(p.Interiors) == 0 {
		return false, byzproof.NewError(byzproof.ErrMalformedProof, "no interior nodes")
	}
	term, err := p.Terminal()
	if err != nil {
		return false, err
	}
	bits := ToBits(key)
	if len(bits) < len(p.Interiors) {
		return false, byzproof.NewError(byzproof.ErrMalformedProof,
			"path is longer than the key")
	}

	hf := p.hash()
	expectedHash := HashInterior(hf, &p.Interiors[0])
	for i := range p.Interiors {
		if !bytes.Equal(HashInterior(hf, &p.Interiors[i]), expectedHash) {
			return false, byzproof.NewErrorf(byzproof.ErrMalformedProof,
				"invalid hash chain at depth %d", i)
		}
		if bits[i] {
			expectedHash = p.Interiors[i].Left
		} else {
			expectedHash = p.Interiors[i].Right
		}
	}
	depth := len(p.Interiors)

	if !bytes.Equal(expectedHash, term.Hash(hf, p.Nonce)) {
		return false, nil
	}
	switch n := term.(type) {
	case *LeafNode:
		if !equal(bits[:depth], n.Prefix) {
			return false, byzproof.NewError(byzproof.ErrMalformedProof, "invalid prefix in leaf node")
		}
		return bytes.Equal(n.Key, key), nil
	case *EmptyNode:
		if !equal(bits[:depth], n.Prefix) {
			return false, byzproof.NewError(byzproof.ErrMalformedProof, "invalid prefix in empty node")
		}
		return false, nil
	}
	return false, xerrors.New("unknown terminal node")
}

// KeyValue returns the key and the value stored in the proof. Both are nil
// for a proof of absence.
func (p *Proof) KeyValue() ([]byte, []byte) {
	if p.Leaf == nil {
		return nil, nil
	}
	return p.Leaf.Key, p.Leaf.Value
}

// Get returns the value stored under key, or nil if the proof is for another
// key.
func (p *Proof) Get(key []byte) []byte {
	k, v := p.KeyValue()
	if len(k) == 0 || !bytes.Equal(k, key) {
		return nil
	}
	return v
}

// GetProof returns a proof for key. The proof is a proof of absence if the
// key is not stored.
func (t *Trie) GetProof(key []byte) (*Proof, error) {
	p := &Proof{hf: t.hf}
	err := t.db.View(func(b Bucket) error {
		rootKey := t.GetRootWithBucket(b)
		if rootKey == nil {
			return xerrors.New("no root key")
		}
		p.Nonce = clone(t.nonce)
		return t.getProof(0, rootKey, ToBits(key), p, b)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// getProof updates Proof p as it traverses the tree.
func (t *Trie) getProof(depth int, nodeKey []byte, bits []bool, p *Proof, b Bucket) error {
	nodeVal := b.Get(nodeKey)
	if len(nodeVal) == 0 {
		return xerrors.New("invalid node key")
	}
	switch nodeType(nodeVal[0]) {
	case typeEmpty:
		node, err := decodeEmptyNode(nodeVal)
		if err != nil {
			return err
		}
		p.Empty = &node
		return nil
	case typeLeaf:
		node, err := decodeLeafNode(nodeVal)
		if err != nil {
			return err
		}
		p.Leaf = &node
		return nil
	case typeInterior:
		node, err := decodeInteriorNode(nodeVal)
		if err != nil {
			return err
		}
		if depth >= len(bits) {
			return ErrKeyTooShort
		}
		p.addInterior(node)
		if bits[depth] {
			return t.getProof(depth+1, node.Left, bits, p, b)
		}
		// look right
		return t.getProof(depth+1, node.Right, bits, p, b)
	}
	return xerrors.New("invalid node type")
}
