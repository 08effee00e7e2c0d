package byzproof

import (
	"go.dedis.ch/kyber/v3/pairing"
)

// Suite is the pairing suite the validators sign forward-links with.
var Suite = pairing.NewSuiteBn256()
