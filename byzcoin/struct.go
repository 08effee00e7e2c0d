package byzcoin

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/byzproof/darc"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

const prefixLength = 32 // bytes

// InstanceID is the key of an instance in the global state. All keys have
// the same length, so that no key is a prefix of another one in the trie.
type InstanceID [prefixLength]byte

// NewInstanceID converts the first 32 bytes of in into an InstanceID.
// Giving nil as in results in the zero InstanceID.
func NewInstanceID(in []byte) InstanceID {
	var i InstanceID
	copy(i[:], in)
	return i
}

// ParseInstanceID reads a hex-encoded InstanceID.
func ParseInstanceID(s string) (InstanceID, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return InstanceID{}, xerrors.Errorf("invalid instance id: %v", err)
	}
	if len(buf) != prefixLength {
		return InstanceID{}, xerrors.Errorf("instance id must have %d bytes", prefixLength)
	}
	return NewInstanceID(buf), nil
}

// Equal returns if both InstanceIDs point to the same instance.
func (iID InstanceID) Equal(other InstanceID) bool {
	return iID == other
}

// Slice returns a slice of the InstanceID.
func (iID InstanceID) Slice() []byte {
	return iID[:]
}

// String returns the InstanceID as a hex-encoded string.
func (iID InstanceID) String() string {
	return hex.EncodeToString(iID[:])
}

// StateAction describes how the instance has been changed by the last
// transaction touching it.
type StateAction int

const (
	// Create allows to insert a new key-value association.
	Create StateAction = iota + 1
	// Update allows to change the value of an existing key.
	Update
	// Remove allows to delete an existing key-value association.
	Remove
)

// String returns a readable output of the action.
func (sc StateAction) String() string {
	switch sc {
	case Create:
		return "Create"
	case Update:
		return "Update"
	case Remove:
		return "Remove"
	default:
		return fmt.Sprintf("Invalid(%d)", int(sc))
	}
}

// DataHeader is the data passed to the Skipchain. It is the only part of
// the block data covered by the block hash that a proof needs.
type DataHeader struct {
	// TrieRoot is the root of the merkle tree of the global state after
	// applying the valid transactions.
	TrieRoot []byte
	// ClientTransactionHash is the sha256 hash of all the transactions in the body
	ClientTransactionHash []byte
	// StateChangesHash is the sha256 of all the StateChanges occurring through the
	// ClientTransactions.
	StateChangesHash []byte
	// Timestamp is a unix timestamp in nanoseconds.
	Timestamp int64
	// Version of the ledger that produced the block.
	Version int
}

// Encode returns the protobuf representation stored in the block data.
func (dh DataHeader) Encode() ([]byte, error) {
	buf, err := protobuf.Encode(&dh)
	if err != nil {
		return nil, xerrors.Errorf("encoding header: %v", err)
	}
	return buf, nil
}

// DecodeDataHeader reads the header of a block.
func DecodeDataHeader(buf []byte) (*DataHeader, error) {
	var header DataHeader
	if err := protobuf.Decode(buf, &header); err != nil {
		return nil, xerrors.Errorf("decoding header: %v", err)
	}
	return &header, nil
}

// StateChangeBody is the body of a state change, which is the value stored
// in a leaf of the trie.
type StateChangeBody struct {
	StateAction StateAction
	ContractID  string
	Value       []byte
	Version     uint64
	DarcID      darc.ID
}

// NewStateChangeBody returns the body stored for an instance.
func NewStateChangeBody(sa StateAction, cid string, darcID darc.ID, value []byte, version uint64) StateChangeBody {
	return StateChangeBody{
		StateAction: sa,
		ContractID:  cid,
		Value:       value,
		Version:     version,
		DarcID:      darcID,
	}
}

// Encode returns the bytes stored in the leaf.
func (s StateChangeBody) Encode() ([]byte, error) {
	buf, err := protobuf.Encode(&s)
	if err != nil {
		return nil, xerrors.Errorf("encoding state change: %v", err)
	}
	return buf, nil
}

func decodeStateChangeBody(buf []byte) (StateChangeBody, error) {
	var s StateChangeBody
	err := protobuf.Decode(buf, &s)
	if err != nil {
		return s, xerrors.Errorf("decoding state change: %v", err)
	}
	if s.StateAction < Create || s.StateAction > Remove {
		return s, xerrors.Errorf("invalid state action %s", s.StateAction)
	}
	return s, nil
}

// Instance is the content of a key of the global state, as read from a
// verified proof.
type Instance struct {
	// ID is the key of the instance.
	ID InstanceID
	// ContractID is the name of the contract that created the instance.
	ContractID string
	// Value is the raw value of the instance.
	Value []byte
	// DarcID is the darc guarding the instance.
	DarcID darc.ID
	// Version is incremented on each update of the instance.
	Version uint64
}

func (i Instance) String() string {
	return fmt.Sprintf("instance %s: contract %q, version %d, %s, %d bytes",
		i.ID, i.ContractID, i.Version, i.DarcID, len(i.Value))
}
