package lib

import (
	"encoding/hex"
	"os"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/byzproof"
	"go.dedis.ch/byzproof/skipchain"
	"go.dedis.ch/kyber/v3/util/encoding"
	"golang.org/x/xerrors"
)

// BcvName is the name of the binary, used for the default paths.
const BcvName = "bcverify"

// ServerToml is one member of the genesis roster as written in the
// configuration file.
type ServerToml struct {
	Address string
	Public  string
}

// Config is the trust anchor of a ByzCoin ledger as stored on disk. It is
// all a client needs to verify proofs of that ledger, and must come from a
// trusted source.
type Config struct {
	// ByzCoinID is the hex-encoded ID of the genesis block.
	ByzCoinID string
	// Scheme is the signature scheme of the roster, "bls" or "bdn".
	Scheme string
	// Roster is the roster of the genesis block, in order.
	Roster []ServerToml `toml:"servers"`
}

// NewConfig returns the configuration holding the anchor.
func NewConfig(anchor *skipchain.TrustAnchor) (*Config, error) {
	cfg := &Config{
		ByzCoinID: hex.EncodeToString(anchor.GenesisID),
		Scheme:    anchor.Scheme.String(),
	}
	for _, si := range anchor.Roster.List {
		pub, err := encoding.PointToStringHex(byzproof.Suite.G2(), si.Public)
		if err != nil {
			return nil, xerrors.Errorf("encoding public key: %v", err)
		}
		cfg.Roster = append(cfg.Roster, ServerToml{
			Address: si.Address,
			Public:  pub,
		})
	}
	return cfg, nil
}

// LoadConfig reads the configuration in the toml file fn.
func LoadConfig(fn string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(fn, cfg); err != nil {
		return nil, xerrors.Errorf("reading %s: %v", fn, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as toml to fn.
func SaveConfig(fn string, cfg *Config) error {
	f, err := os.Create(fn)
	if err != nil {
		return xerrors.Errorf("could not write %v: %v", fn, err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return xerrors.Errorf("encoding config: %v", err)
	}
	return byzproof.ErrorOrNil(f.Close(), "closing config")
}

// Anchor parses the configuration into a trust anchor.
func (cfg *Config) Anchor() (*skipchain.TrustAnchor, error) {
	id, err := hex.DecodeString(cfg.ByzCoinID)
	if err != nil || len(id) == 0 {
		return nil, byzproof.NewError(byzproof.ErrInvalidInput, "invalid ByzCoinID")
	}
	scheme, err := skipchain.ParseScheme(cfg.Scheme)
	if err != nil {
		return nil, byzproof.NewErrorf(byzproof.ErrInvalidInput, "%v", err)
	}
	if len(cfg.Roster) == 0 {
		return nil, byzproof.NewError(byzproof.ErrInvalidInput, "empty roster")
	}
	ro := &skipchain.Roster{}
	for i, s := range cfg.Roster {
		pub, err := encoding.StringHexToPoint(byzproof.Suite.G2(), s.Public)
		if err != nil {
			return nil, byzproof.NewErrorf(byzproof.ErrInvalidInput,
				"invalid public key of server %d: %v", i, err)
		}
		ro.List = append(ro.List, &skipchain.ServerIdentity{
			Address: s.Address,
			Public:  pub,
		})
	}
	return &skipchain.TrustAnchor{
		GenesisID: id,
		Roster:    ro,
		Scheme:    scheme,
	}, nil
}
