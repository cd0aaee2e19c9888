package eip4844

import (
	"math/big"
	"testing"
)

// Vectors from go-ethereum's consensus/misc/eip4844 tests.
func TestCalcExcessBlobGas(t *testing.T) {
	targetBlobs := TargetDataGasPerBlock / DataGasPerBlob

	tests := []struct {
		excess uint64
		blobs  uint64
		want   uint64
	}{
		// Excess stays at zero while usage is at or below target.
		{0, 0, 0},
		{0, 1, 0},
		{0, targetBlobs, 0},

		// Above target, excess grows by the overshoot.
		{0, targetBlobs + 1, DataGasPerBlob},
		{1, targetBlobs + 1, DataGasPerBlob + 1},
		{1, targetBlobs + 2, 2*DataGasPerBlob + 1},

		// Below target, excess shrinks by the undershoot, capped at zero.
		{TargetDataGasPerBlock, targetBlobs, TargetDataGasPerBlock},
		{TargetDataGasPerBlock, targetBlobs - 1, TargetDataGasPerBlock - DataGasPerBlob},
		{TargetDataGasPerBlock, targetBlobs - 2, TargetDataGasPerBlock - 2*DataGasPerBlob},
		{DataGasPerBlob - 1, targetBlobs - 1, 0},
	}

	for _, tt := range tests {
		got := CalcExcessBlobGas(tt.excess, tt.blobs*DataGasPerBlob)
		if got != tt.want {
			t.Errorf("CalcExcessBlobGas(%d, %d blobs) = %d, want %d",
				tt.excess, tt.blobs, got, tt.want)
		}
	}
}

func TestCalcBlobGasprice(t *testing.T) {
	tests := []struct {
		excess uint64
		want   string
	}{
		{0, "1"},
		{2314057, "1"},
		{2314058, "2"},
		{10 * 1024 * 1024, "23"},
		// Boundary cases around the 64-bit overflow of the output.
		{148099578, "18446739238971471609"},
		{148099579, "18446744762204311910"},
		{161087488, "902580055246494526580"},
	}

	for _, tt := range tests {
		want, ok := new(big.Int).SetString(tt.want, 10)
		if !ok {
			t.Fatalf("bad vector %q", tt.want)
		}
		got := CalcBlobGasprice(tt.excess)
		if got.Cmp(want) != 0 {
			t.Errorf("CalcBlobGasprice(%d) = %s, want %s", tt.excess, got, want)
		}
	}
}

func TestFakeExponential(t *testing.T) {
	tests := []struct {
		factor      uint64
		numerator   uint64
		denominator uint64
		want        uint64
	}{
		{1, 0, 1, 1},
		{38493, 0, 1000, 38493},
		{0, 1234, 2345, 0},
		{1, 2, 1, 6},   // approximates 7.389
		{1, 4, 2, 6},
		{1, 3, 1, 16},  // approximates 20.09
		{1, 6, 2, 18},
		{1, 4, 1, 49},  // approximates 54.60
		{1, 8, 2, 50},
		{10, 8, 2, 542}, // approximates 540.598
		{11, 8, 2, 596}, // approximates 600.58
		{1, 5, 1, 136},  // approximates 148.4
		{1, 5, 2, 11},   // approximates 12.18
		{2, 5, 2, 23},   // approximates 24.36
		{1, 50000000, 2225652, 5709098764},
		{1, 380928, BlobGaspriceUpdateFraction, 1},
	}

	for _, tt := range tests {
		got := fakeExponential(
			new(big.Int).SetUint64(tt.factor),
			new(big.Int).SetUint64(tt.numerator),
			new(big.Int).SetUint64(tt.denominator),
		)
		if !got.IsUint64() || got.Uint64() != tt.want {
			t.Errorf("fakeExponential(%d, %d, %d) = %s, want %d",
				tt.factor, tt.numerator, tt.denominator, got, tt.want)
		}
	}
}
