package feeestimator

import (
	"errors"
	"testing"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
)

type fakeSource struct {
	rate int64
	err  error
}

func (f *fakeSource) EstimateFeeRateSatVB() (int64, error) {
	return f.rate, f.err
}

func TestEstimateFeeRateSatVBPassesThroughSource(t *testing.T) {
	e := New(&fakeSource{rate: 42})

	rate, err := e.EstimateFeeRateSatVB()
	if err != nil {
		t.Fatalf("EstimateFeeRateSatVB() error = %v", err)
	}
	if rate != 42 {
		t.Fatalf("rate = %d, want 42", rate)
	}
}

func TestEstimateFeeRateSatVBFallsBackOnSourceError(t *testing.T) {
	e := New(&fakeSource{err: errors.New("node unreachable")})

	rate, err := e.EstimateFeeRateSatVB()
	if err != nil {
		t.Fatalf("EstimateFeeRateSatVB() error = %v, want nil (fallback)", err)
	}
	if rate != config.BTCDefaultFeeRateSatVB {
		t.Fatalf("rate = %d, want default %d", rate, config.BTCDefaultFeeRateSatVB)
	}
}

func TestEstimateFeeRateSatVBEnforcesMinimum(t *testing.T) {
	e := New(&fakeSource{rate: 0})

	rate, err := e.EstimateFeeRateSatVB()
	if err != nil {
		t.Fatalf("EstimateFeeRateSatVB() error = %v", err)
	}
	if rate != config.BTCMinFeeRateSatVB {
		t.Fatalf("rate = %d, want min %d", rate, config.BTCMinFeeRateSatVB)
	}
}

func TestShouldSpeedUpTrueWhenFeesRoseEnough(t *testing.T) {
	e := New(&fakeSource{rate: 20})

	should, err := e.ShouldSpeedUp(10)
	if err != nil {
		t.Fatalf("ShouldSpeedUp() error = %v", err)
	}
	if !should {
		t.Fatal("ShouldSpeedUp() = false, want true (20 > 10*1.2)")
	}
}

func TestShouldSpeedUpFalseWhenFeesBarelyMoved(t *testing.T) {
	e := New(&fakeSource{rate: 11})

	should, err := e.ShouldSpeedUp(10)
	if err != nil {
		t.Fatalf("ShouldSpeedUp() error = %v", err)
	}
	if should {
		t.Fatal("ShouldSpeedUp() = true, want false (11 <= 10*1.2)")
	}
}

func TestShouldSpeedUpFalseWhenFeesDropped(t *testing.T) {
	e := New(&fakeSource{rate: 5})

	should, err := e.ShouldSpeedUp(10)
	if err != nil {
		t.Fatalf("ShouldSpeedUp() error = %v", err)
	}
	if should {
		t.Fatal("ShouldSpeedUp() = true, want false (fee rate dropped)")
	}
}

func TestShouldSpeedUpUsesFallbackOnSourceError(t *testing.T) {
	e := New(&fakeSource{err: errors.New("node unreachable")})

	should, err := e.ShouldSpeedUp(1)
	if err != nil {
		t.Fatalf("ShouldSpeedUp() error = %v", err)
	}
	// Falls back to config.BTCDefaultFeeRateSatVB (10), which exceeds 1*1.2.
	if !should {
		t.Fatal("ShouldSpeedUp() = false, want true (default fallback exceeds threshold)")
	}
}
