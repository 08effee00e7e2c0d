package byzcoin

import (
	"context"
	"runtime"
	"time"

	"go.dedis.ch/byzproof"
	"go.dedis.ch/byzproof/skipchain"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/sync/errgroup"
)

// Verifier checks proofs against one trust anchor. It is safe for
// concurrent use.
type Verifier struct {
	anchor  *skipchain.TrustAnchor
	metrics *Metrics
	workers int
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithMetrics records every verification in m.
func WithMetrics(m *Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// WithWorkers sets how many proofs VerifyBatch checks at the same time. It
// defaults to the number of CPUs.
func WithWorkers(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.workers = n
		}
	}
}

// NewVerifier returns a verifier for the chain of the anchor.
func NewVerifier(anchor *skipchain.TrustAnchor, opts ...VerifierOption) (*Verifier, error) {
	if anchor == nil || anchor.GenesisID.IsNull() {
		return nil, byzproof.NewError(byzproof.ErrInvalidInput, "missing trust anchor")
	}
	v := &Verifier{
		anchor:  anchor,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the links and the root of the proof.
func (v *Verifier) Verify(p *Proof) (err error) {
	defer func(start time.Time) { v.metrics.observe(start, err) }(time.Now())
	if p == nil {
		return byzproof.NewError(byzproof.ErrInvalidInput, "missing proof")
	}
	return p.Verify(v.anchor)
}

// Instance verifies the proof and returns the instance stored under key.
func (v *Verifier) Instance(p *Proof, key []byte) (inst *Instance, err error) {
	defer func(start time.Time) { v.metrics.observe(start, err) }(time.Now())
	if p == nil {
		return nil, byzproof.NewError(byzproof.ErrInvalidInput, "missing proof")
	}
	return p.Instance(v.anchor, key)
}

// VerifyBatch verifies independent proofs concurrently. The returned slice
// holds the result of each proof at the same index. Proofs that didn't
// start when ctx is done get the error of the context.
func (v *Verifier) VerifyBatch(ctx context.Context, proofs []*Proof) []error {
	errs := make([]error, len(proofs))
	var g errgroup.Group
	g.SetLimit(v.workers)
	for i := range proofs {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = v.Verify(proofs[i])
			return nil
		})
	}
	// The goroutines never fail, their results are in errs.
	_ = g.Wait()
	log.Lvl2("verified batch of", len(proofs), "proofs")
	return errs
}
