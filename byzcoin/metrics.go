package byzcoin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/byzproof"
	"golang.org/x/xerrors"
)

// Metrics counts the verifications done by a Verifier and how long they
// took.
type Metrics struct {
	verifications *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them. Giving
// prometheus.DefaultRegisterer exports them with the other metrics of the
// process.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "byzproof_verifications_total",
				Help: "Number of proofs verified, by result.",
			},
			[]string{"result"}),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "byzproof_verification_seconds",
				Help:    "Time taken to verify one proof.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			}),
	}
	for _, c := range []prometheus.Collector{m.verifications, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, xerrors.Errorf("registering metrics: %v", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(start time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
	m.verifications.WithLabelValues(resultLabel(err)).Inc()
}

// resultLabel maps an error to the label used in the metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case xerrors.Is(err, byzproof.ErrInvalidInput):
		return "invalid_input"
	case xerrors.Is(err, byzproof.ErrMalformedProof):
		return "malformed_proof"
	case xerrors.Is(err, byzproof.ErrChainBroken):
		return "chain_broken"
	case xerrors.Is(err, byzproof.ErrRootMismatch):
		return "root_mismatch"
	case xerrors.Is(err, byzproof.ErrNotFound):
		return "not_found"
	}
	return "error"
}
