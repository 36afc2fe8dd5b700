// Package feeestimator implements the coordinator's fee-rate policy:
// fetch a current sat/vB estimate from the node, falling back to a
// conservative constant if the node is unreachable, and decide whether
// a pending speedup's fee rate has gone stale enough to warrant another
// bump.
package feeestimator

import (
	"log/slog"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
)

// rateSource is the narrow capability this package needs from the node
// client: a single passthrough fee-rate query.
type rateSource interface {
	EstimateFeeRateSatVB() (int64, error)
}

// Estimator implements coordinator.FeeEstimator.
type Estimator struct {
	source rateSource
}

var _ coordinator.FeeEstimator = (*Estimator)(nil)

// New creates a fee estimator backed by source.
func New(source rateSource) *Estimator {
	return &Estimator{source: source}
}

// EstimateFeeRateSatVB returns the node's current fee-rate estimate,
// falling back to a fixed conservative rate if the node can't be
// reached.
func (e *Estimator) EstimateFeeRateSatVB() (int64, error) {
	rate, err := e.source.EstimateFeeRateSatVB()
	if err != nil {
		slog.Warn("fee estimate unavailable, using default", "error", err, "defaultSatVB", config.BTCDefaultFeeRateSatVB)
		return config.BTCDefaultFeeRateSatVB, nil
	}
	if rate < config.BTCMinFeeRateSatVB {
		rate = config.BTCMinFeeRateSatVB
	}
	slog.Debug("fee estimate fetched", "satVB", rate)
	return rate, nil
}

// ShouldSpeedUp reports whether the network's current fee rate has
// risen enough past a speedup's last delivered rate to justify another
// CPFP/RBF round.
func (e *Estimator) ShouldSpeedUp(prevFeeRateSatVB int64) (bool, error) {
	current, err := e.EstimateFeeRateSatVB()
	if err != nil {
		return false, err
	}
	threshold := float64(prevFeeRateSatVB) * config.ShouldSpeedUpMultiplier
	return float64(current) > threshold, nil
}
