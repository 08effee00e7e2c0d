package trie

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

type nodeType int

// The node types double as the domain tags of the node hashes, so an interior,
// an empty and a leaf node never hash the same content.
const (
	typeInterior nodeType = iota + 1
	typeEmpty
	typeLeaf
)

// Sha256 is the hash used for the nodes unless another one is given.
var Sha256 kyber.HashFactory = sha256Factory{}

type sha256Factory struct{}

func (sha256Factory) Hash() hash.Hash {
	return sha256.New()
}

// InteriorNode holds the hashes of its two children.
type InteriorNode struct {
	Left  []byte
	Right []byte
}

// LeafNode holds a key/value pair at the end of the path given by Prefix.
type LeafNode struct {
	Prefix []bool
	Key    []byte
	Value  []byte
}

// EmptyNode marks that no key follows the path given by Prefix.
type EmptyNode struct {
	Prefix []bool
}

// HashInterior returns the hash of an interior node: the tag followed by the
// left and the right hash, fed to a single hash context.
func HashInterior(hf kyber.HashFactory, n *InteriorNode) []byte {
	h := hf.Hash()
	h.Write([]byte{byte(typeInterior)})
	h.Write(n.Left)
	h.Write(n.Right)
	return h.Sum(nil)
}

// HashLeaf returns the hash of a leaf node. The input is the tag, the nonce
// of the trie, the packed prefix, the prefix length as a 4-byte little endian
// integer, the key and the value.
func HashLeaf(hf kyber.HashFactory, n *LeafNode, nonce []byte) []byte {
	h := hf.Hash()
	h.Write([]byte{byte(typeLeaf)})
	h.Write(nonce)
	writePrefix(h, n.Prefix)
	h.Write(n.Key)
	h.Write(n.Value)
	return h.Sum(nil)
}

// HashEmpty returns the hash of an empty node. The input is the tag, the
// nonce of the trie, the packed prefix and the prefix length as a 4-byte little
// endian integer.
func HashEmpty(hf kyber.HashFactory, n *EmptyNode, nonce []byte) []byte {
	h := hf.Hash()
	h.Write([]byte{byte(typeEmpty)})
	h.Write(nonce)
	writePrefix(h, n.Prefix)
	return h.Sum(nil)
}

func writePrefix(h hash.Hash, prefix []bool) {
	h.Write(FromBits(prefix))
	lBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lBuf, uint32(len(prefix)))
	h.Write(lBuf)
}

// Terminal is the node a proof ends in: either a *LeafNode or an *EmptyNode.
type Terminal interface {
	// Hash returns the hash of the node in a trie with the given nonce.
	Hash(hf kyber.HashFactory, nonce []byte) []byte
	// GetPrefix returns the bits leading to the node.
	GetPrefix() []bool
	isTerminal()
}

// Hash implements Terminal.
func (n *LeafNode) Hash(hf kyber.HashFactory, nonce []byte) []byte {
	return HashLeaf(hf, n, nonce)
}

// GetPrefix implements Terminal.
func (n *LeafNode) GetPrefix() []bool {
	return n.Prefix
}

func (n *LeafNode) isTerminal() {}

// Hash implements Terminal.
func (n *EmptyNode) Hash(hf kyber.HashFactory, nonce []byte) []byte {
	return HashEmpty(hf, n, nonce)
}

// GetPrefix implements Terminal.
func (n *EmptyNode) GetPrefix() []bool {
	return n.Prefix
}

func (n *EmptyNode) isTerminal() {}

func newInteriorNode(left, right []byte) InteriorNode {
	return InteriorNode{
		Left:  left,
		Right: right,
	}
}

func newEmptyNode(prefix []bool) EmptyNode {
	return EmptyNode{
		Prefix: prefix,
	}
}

func newLeafNode(prefix []bool, key []byte, value []byte) LeafNode {
	return LeafNode{
		Prefix: prefix,
		Key:    key,
		Value:  value,
	}
}

// The nodes are stored in the database as their type followed by their
// protobuf encoding.

func encodeNode(ty nodeType, n interface{}) ([]byte, error) {
	buf, err := protobuf.Encode(n)
	if err != nil {
		return nil, xerrors.Errorf("encoding node: %v", err)
	}
	return append([]byte{byte(ty)}, buf...), nil
}

func decodeNode(ty nodeType, buf []byte, n interface{}) error {
	if len(buf) == 0 {
		return xerrors.New("empty buffer")
	}
	if nodeType(buf[0]) != ty {
		return xerrors.New("wrong node type")
	}
	if err := protobuf.Decode(buf[1:], n); err != nil {
		return xerrors.Errorf("decoding node: %v", err)
	}
	return nil
}

func (n *InteriorNode) encode() ([]byte, error) {
	return encodeNode(typeInterior, n)
}

func decodeInteriorNode(buf []byte) (node InteriorNode, err error) {
	err = decodeNode(typeInterior, buf, &node)
	return
}

func (n *EmptyNode) encode() ([]byte, error) {
	return encodeNode(typeEmpty, n)
}

func decodeEmptyNode(buf []byte) (node EmptyNode, err error) {
	err = decodeNode(typeEmpty, buf, &node)
	return
}

func (n *LeafNode) encode() ([]byte, error) {
	return encodeNode(typeLeaf, n)
}

func decodeLeafNode(buf []byte) (node LeafNode, err error) {
	err = decodeNode(typeLeaf, buf, &node)
	return
}
