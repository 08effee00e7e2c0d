package trie

import (
	"bytes"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// The two well-known keys of the database, next to the nodes stored under
// their hashes.
const (
	nonceKey = "dbnonce"
	entryKey = "dbentry"
)

// ErrKeyTooShort is returned if a path through the trie needs more bits than
// the key has. This happens when a key is a prefix of another key.
var ErrKeyTooShort = xerrors.New("key is shorter than the path in the trie")

// Trie implements the Merkle prefix tree described in the coniks paper. The
// path to a key is given by the bits of the key itself, so all keys should
// have the same length.
type Trie struct {
	nonce []byte
	db    DB
	hf    kyber.HashFactory
}

// GetNonce returns the stored nonce.
func (t *Trie) GetNonce() []byte {
	return clone(t.nonce)
}

// LoadTrie loads the trie from a database, it must exist otherwise an error
// is returned. It does not check the consistency after loading the database.
// If that is required, call IsValid.
func LoadTrie(db DB) (*Trie, error) {
	var nonce []byte
	err := db.View(func(b Bucket) error {
		// load the nonce
		nonceBuf := b.Get([]byte(nonceKey))
		if nonceBuf == nil {
			return xerrors.New("trie-error: db-nonce does not exist")
		}
		nonce = clone(nonceBuf)

		// check the root node and that the value exists
		rootKey := b.Get([]byte(entryKey))
		if rootKey == nil {
			return xerrors.New("trie-error: root does not exist")
		}
		if b.Get(rootKey) == nil {
			return xerrors.New("trie-error: invalid reference to root")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Trie{
		nonce: nonce,
		db:    db,
		hf:    Sha256,
	}, nil
}

// NewTrie creates a new trie with a user-specified nonce, it will return an
// error if it is called on an existing database.
func NewTrie(db DB, nonce []byte) (*Trie, error) {
	return NewTrieWithHash(db, nonce, Sha256)
}

// NewTrieWithHash is like NewTrie, but the nodes are hashed with hf.
func NewTrieWithHash(db DB, nonce []byte, hf kyber.HashFactory) (*Trie, error) {
	t := &Trie{
		nonce: clone(nonce),
		db:    db,
		hf:    hf,
	}
	err := db.Update(func(b Bucket) error {
		if b.Get([]byte(nonceKey)) != nil {
			return xerrors.New("nonce already exists")
		}
		if err := b.Put([]byte(nonceKey), t.nonce); err != nil {
			return err
		}
		if b.Get([]byte(entryKey)) != nil {
			return xerrors.New("root already exists")
		}
		return t.newRootNode(b)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DB returns the backend DB interface. Take extreme care when using DB
// directly, because it offers raw access to the data. A mistake can corrupt
// the trie structure.
func (t *Trie) DB() DB {
	return t.db
}

func (t *Trie) hashInterior(n *InteriorNode) []byte {
	return HashInterior(t.hf, n)
}

func (t *Trie) hashLeaf(n *LeafNode) []byte {
	return HashLeaf(t.hf, n, t.nonce)
}

func (t *Trie) hashEmpty(n *EmptyNode) []byte {
	return HashEmpty(t.hf, n, t.nonce)
}

// newRootNode creates the root node and two empty nodes and store these in the
// bucket.
func (t *Trie) newRootNode(b Bucket) error {
	left := newEmptyNode([]bool{true})
	right := newEmptyNode([]bool{false})
	root := newInteriorNode(t.hashEmpty(&left), t.hashEmpty(&right))

	if err := t.putEmpty(&left, b); err != nil {
		return err
	}
	if err := t.putEmpty(&right, b); err != nil {
		return err
	}
	rootHash, err := t.putInterior(&root, b)
	if err != nil {
		return err
	}
	return b.Put([]byte(entryKey), rootHash)
}

func (t *Trie) putInterior(n *InteriorNode, b Bucket) ([]byte, error) {
	buf, err := n.encode()
	if err != nil {
		return nil, err
	}
	h := t.hashInterior(n)
	return h, b.Put(h, buf)
}

func (t *Trie) putEmpty(n *EmptyNode, b Bucket) error {
	buf, err := n.encode()
	if err != nil {
		return err
	}
	return b.Put(t.hashEmpty(n), buf)
}

func (t *Trie) putLeaf(n *LeafNode, b Bucket) ([]byte, error) {
	buf, err := n.encode()
	if err != nil {
		return nil, err
	}
	h := t.hashLeaf(n)
	return h, b.Put(h, buf)
}

// GetRoot returns the root of the trie.
func (t *Trie) GetRoot() []byte {
	var root []byte
	t.db.View(func(b Bucket) error {
		root = clone(t.GetRootWithBucket(b))
		return nil
	})
	return root
}

// GetRootWithBucket returns the root of the trie in an existing bucket.
func (t *Trie) GetRootWithBucket(b Bucket) []byte {
	return b.Get([]byte(entryKey))
}

// OpType is the operation type that modifies state.
type OpType int

const (
	// OpSet is the set operation.
	OpSet OpType = iota
	// OpDel is the delete operation.
	OpDel
	// Nop is no operation.
	Nop
)

// KVPair is the interface for getting a key-value pair and an operation type.
type KVPair interface {
	Op() OpType
	Key() []byte
	Val() []byte
}

// Set sets or overwrites a key-value pair.
func (t *Trie) Set(key []byte, value []byte) error {
	return t.db.Update(func(b Bucket) error {
		return t.SetWithBucket(key, value, b)
	})
}

// Batch is similar to Set, but for multiple key-value pairs.
func (t *Trie) Batch(pairs []KVPair) error {
	return t.db.Update(func(b Bucket) error {
		return t.BatchWithBucket(pairs, b)
	})
}

// BatchWithBucket is similar to SetWithBucket, but for multiple key-value
// pairs.
func (t *Trie) BatchWithBucket(pairs []KVPair, b Bucket) error {
	for _, p := range pairs {
		switch p.Op() {
		case OpSet:
			if err := t.SetWithBucket(p.Key(), p.Val(), b); err != nil {
				return err
			}
		case OpDel:
			if err := t.DeleteWithBucket(p.Key(), b); err != nil {
				return err
			}
		case Nop:
		default:
			return xerrors.New("no such operation")
		}
	}
	return nil
}

// SetWithBucket sets or overwrites a key-value pair. It must be called inside
// a DB.Update transaction.
func (t *Trie) SetWithBucket(key []byte, value []byte, b Bucket) error {
	if len(key) == 0 {
		return xerrors.New("empty key")
	}
	newRoot, err := t.set(t.GetRootWithBucket(b), ToBits(key), 0, key, value, b)
	if err != nil {
		return err
	}
	return b.Put([]byte(entryKey), newRoot)
}

func (t *Trie) set(nodeKey []byte, bits []bool, depth int, key, value []byte, b Bucket) ([]byte, error) {
	nodeVal := b.Get(nodeKey)
	if len(nodeVal) == 0 {
		return nil, xerrors.New("node key does not exist in set")
	}
	switch nodeType(nodeVal[0]) {
	case typeEmpty:
		// base case 1
		node, err := decodeEmptyNode(nodeVal)
		if err != nil {
			return nil, err
		}
		if err := b.Delete(t.hashEmpty(&node)); err != nil {
			return nil, err
		}
		leaf := newLeafNode(node.Prefix, clone(key), clone(value))
		return t.putLeaf(&leaf, b)
	case typeLeaf:
		// base case 2
		node, err := decodeLeafNode(nodeVal)
		if err != nil {
			return nil, err
		}
		if err := b.Delete(t.hashLeaf(&node)); err != nil {
			return nil, err
		}

		// If the key is the same, then we don't need to create a new
		// internal node, just update the value and hash.
		if bytes.Equal(node.Key, key) {
			node.Value = clone(value)
			return t.putLeaf(&node, b)
		}
		// Otherwise, we need to create one or more interior nodes.
		left, right, err := t.extendLeaf(node.Prefix, node.Key, node.Value, ToBits(node.Key),
			clone(key), clone(value), bits, b)
		if err != nil {
			return nil, err
		}
		interior := newInteriorNode(left, right)
		return t.putInterior(&interior, b)
	case typeInterior:
		// recursive case
		node, err := decodeInteriorNode(nodeVal)
		if err != nil {
			return nil, err
		}
		if depth >= len(bits) {
			return nil, ErrKeyTooShort
		}
		oldHash := t.hashInterior(&node)
		if bits[depth] {
			node.Left, err = t.set(node.Left, bits, depth+1, key, value, b)
		} else {
			node.Right, err = t.set(node.Right, bits, depth+1, key, value, b)
		}
		if err != nil {
			return nil, err
		}
		// update the interior node
		if err := b.Delete(oldHash); err != nil {
			return nil, err
		}
		return t.putInterior(&node, b)
	}
	return nil, xerrors.New("invalid node type")
}

// extendLeaf recursively extends a leaf node that's at the given prefix
// until the bits of the two keys differ. It returns the left and the right
// hash of the interior node at currPrefix.
func (t *Trie) extendLeaf(currPrefix []bool,
	key1, value1 []byte, bits1 []bool,
	key2, value2 []byte, bits2 []bool,
	b Bucket) ([]byte, []byte, error) {
	i := len(currPrefix)
	if i >= len(bits1) || i >= len(bits2) {
		return nil, nil, ErrKeyTooShort
	}
	if bits1[i] != bits2[i] {
		// base case:
		leaf1 := newLeafNode(appendBit(currPrefix, bits1[i]), key1, value1)
		leaf2 := newLeafNode(appendBit(currPrefix, bits2[i]), key2, value2)
		hash1, err := t.putLeaf(&leaf1, b)
		if err != nil {
			return nil, nil, err
		}
		hash2, err := t.putLeaf(&leaf2, b)
		if err != nil {
			return nil, nil, err
		}
		if bits1[i] {
			return hash1, hash2, nil
		}
		return hash2, hash1, nil
	}
	// recursive case:
	leftHash, rightHash, err := t.extendLeaf(appendBit(currPrefix, bits1[i]),
		key1, value1, bits1, key2, value2, bits2, b)
	if err != nil {
		return nil, nil, err
	}
	interior := newInteriorNode(leftHash, rightHash)
	interiorHash, err := t.putInterior(&interior, b)
	if err != nil {
		return nil, nil, err
	}
	empty := newEmptyNode(appendBit(currPrefix, !bits1[i]))
	if err = t.putEmpty(&empty, b); err != nil {
		return nil, nil, err
	}
	if bits1[i] {
		return interiorHash, t.hashEmpty(&empty), nil
	}
	return t.hashEmpty(&empty), interiorHash, nil
}

func appendBit(prefix []bool, bit bool) []bool {
	out := make([]bool, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = bit
	return out
}

// Delete deletes the key-value pair. Deleting a missing key does nothing.
func (t *Trie) Delete(key []byte) error {
	return t.db.Update(func(b Bucket) error {
		return t.DeleteWithBucket(key, b)
	})
}

// DeleteWithBucket deletes the key-value pair. It must be called inside an
// DB.Update transaction.
func (t *Trie) DeleteWithBucket(key []byte, b Bucket) error {
	rootKey := t.GetRootWithBucket(b)
	if rootKey == nil {
		return xerrors.New("no root key")
	}
	newRoot, err := t.del(0, rootKey, ToBits(key), key, b)
	if err != nil {
		return err
	}
	if newRoot == nil {
		// nothing was deleted, so don't update the root
		return nil
	}
	return b.Put([]byte(entryKey), newRoot)
}

// TODO for now we just replace leafs with empty nodes, which is ok but it'll
// be better if we can "shrink" the tree as well.
func (t *Trie) del(depth int, nodeKey []byte, bits []bool, key []byte, b Bucket) ([]byte, error) {
	nodeVal := b.Get(nodeKey)
	if len(nodeVal) == 0 {
		return nil, xerrors.New("node key does not exist in del")
	}
	switch nodeType(nodeVal[0]) {
	case typeEmpty:
		// base case 1, nothing to delete
		return nil, nil
	case typeLeaf:
		node, err := decodeLeafNode(nodeVal)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(key, node.Key) {
			// key doesn't exist, nothing to delete
			return nil, nil
		}
		if err := b.Delete(t.hashLeaf(&node)); err != nil {
			return nil, err
		}
		empty := newEmptyNode(node.Prefix)
		if err := t.putEmpty(&empty, b); err != nil {
			return nil, err
		}
		return t.hashEmpty(&empty), nil
	case typeInterior:
		node, err := decodeInteriorNode(nodeVal)
		if err != nil {
			return nil, err
		}
		if depth >= len(bits) {
			return nil, nil
		}
		oldHash := t.hashInterior(&node)
		var res []byte
		if bits[depth] {
			res, err = t.del(depth+1, node.Left, bits, key, b)
		} else {
			res, err = t.del(depth+1, node.Right, bits, key, b)
		}
		if err != nil || res == nil {
			// not found, so do nothing
			return nil, err
		}
		if bits[depth] {
			node.Left = res
		} else {
			node.Right = res
		}
		if err := b.Delete(oldHash); err != nil {
			return nil, err
		}
		return t.putInterior(&node, b)
	}
	return nil, xerrors.New("invalid node type")
}

// Get looks up whether a value exists for the given key. It returns nil if
// the key is not stored.
func (t *Trie) Get(key []byte) ([]byte, error) {
	var val []byte
	err := t.db.View(func(b Bucket) error {
		var err error
		val, err = t.GetWithBucket(key, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// GetWithBucket looks up whether a value exists for the given key, it must be
// executed in a valid transaction.
func (t *Trie) GetWithBucket(key []byte, b Bucket) ([]byte, error) {
	rootKey := t.GetRootWithBucket(b)
	if rootKey == nil {
		return nil, xerrors.New("no root key")
	}
	val, err := t.get(0, rootKey, ToBits(key), key, b)
	if err != nil {
		return nil, err
	}
	return clone(val), nil
}

func (t *Trie) get(depth int, nodeKey []byte, bits []bool, key []byte, b Bucket) ([]byte, error) {
	nodeVal := b.Get(nodeKey)
	if len(nodeVal) == 0 {
		return nil, xerrors.New("node key does not exist in get")
	}
	switch nodeType(nodeVal[0]) {
	case typeEmpty:
		// base case 1
		return nil, nil
	case typeLeaf:
		// base case 2
		node, err := decodeLeafNode(nodeVal)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(key, node.Key) {
			return nil, nil
		}
		return node.Value, nil
	case typeInterior:
		// recursive case
		node, err := decodeInteriorNode(nodeVal)
		if err != nil {
			return nil, err
		}
		if depth >= len(bits) {
			return nil, nil
		}
		if bits[depth] {
			return t.get(depth+1, node.Left, bits, key, b)
		}
		return t.get(depth+1, node.Right, bits, key, b)
	}
	return nil, xerrors.New("invalid node type")
}

// ForEach runs the callback cb on every key/value pair of the trie. The
// iteration stops and the function returns an error when the callback returns
// an error.
func (t *Trie) ForEach(cb func(k, v []byte) error) error {
	return t.db.View(func(b Bucket) error {
		rootKey := t.GetRootWithBucket(b)
		if rootKey == nil {
			return xerrors.New("no root key")
		}
		return t.dfs(rootKey, b, func(n *LeafNode) error {
			return cb(n.Key, n.Value)
		}, nil)
	})
}

// IsValid checks whether the trie is valid: every leaf has a valid proof and
// no node is left dangling.
func (t *Trie) IsValid() error {
	var leaves []LeafNode
	var total int
	err := t.db.View(func(b Bucket) error {
		rootKey := t.GetRootWithBucket(b)
		if rootKey == nil {
			return xerrors.New("no root key")
		}
		return t.dfs(rootKey, b, func(n *LeafNode) error {
			leaves = append(leaves, *n)
			return nil
		}, &total)
	})
	if err != nil {
		return err
	}

	// We can get proof for all the leaves.
	for _, leaf := range leaves {
		proof, err := t.GetProof(leaf.Key)
		if err != nil {
			return err
		}
		ok, err := proof.Exists(leaf.Key)
		if err != nil {
			return err
		}
		if !ok {
			return xerrors.New("got absence proof")
		}
	}

	// Check that we have no dangling nodes.
	var stored int
	err = t.db.View(func(b Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			stored++
			return nil
		})
	})
	if err != nil {
		return err
	}
	if stored != total+2 {
		// plus 2 because there are two well-known keys
		return xerrors.New("dangling nodes")
	}
	return nil
}

// dfs visits all the nodes below nodeKey, calling leafCb on the leaves and
// counting the nodes in total if it is not nil.
func (t *Trie) dfs(nodeKey []byte, b Bucket, leafCb func(*LeafNode) error, total *int) error {
	nodeVal := b.Get(nodeKey)
	if len(nodeVal) == 0 {
		return xerrors.New("invalid node key")
	}
	if total != nil {
		*total++
	}
	switch nodeType(nodeVal[0]) {
	case typeEmpty:
		return nil
	case typeLeaf:
		node, err := decodeLeafNode(nodeVal)
		if err != nil {
			return err
		}
		return leafCb(&node)
	case typeInterior:
		node, err := decodeInteriorNode(nodeVal)
		if err != nil {
			return err
		}
		if err := t.dfs(node.Left, b, leafCb, total); err != nil {
			return err
		}
		return t.dfs(node.Right, b, leafCb, total)
	}
	return xerrors.New("invalid node type")
}
