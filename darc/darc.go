// Package darc holds the identifier of the Distributed Access Right
// Controls that guard the instances of a ledger. Only the identifier is
// needed to tell which rules apply to a verified instance, the evaluation of
// the rules themselves happens on the ledger.
package darc

import (
	"bytes"
	"encoding/hex"
	"strings"

	"golang.org/x/xerrors"
)

// ID is the identity of a Darc - which is the sha256 of its protobuf representation
// over invariant fields [Version, Description, BaseID, Rules]. Signatures are
// not included in the ID.
type ID []byte

// IsNull returns true if this DarcID is not initialised.
func (di ID) IsNull() bool {
	return di == nil
}

// Equal compares with another DarcID.
func (di ID) Equal(other ID) bool {
	return bytes.Equal([]byte(di), []byte(other))
}

// String returns the hex representation of the id, as used by the
// command-line tools.
func (di ID) String() string {
	return "darc:" + hex.EncodeToString(di)
}

// ParseID reads an id written by String, with or without the "darc:"
// prefix.
func ParseID(s string) (ID, error) {
	buf, err := hex.DecodeString(strings.TrimPrefix(s, "darc:"))
	if err != nil {
		return nil, xerrors.Errorf("invalid darc id: %v", err)
	}
	return ID(buf), nil
}
