// Package eip4844 provides EIP-4844 blob gas constants and fee math.
//
// The blob gas market is independent of the regular EIP-1559 fee market:
// blocks carry blob_gas_used and excess_blob_gas fields, and the blob gas
// price is derived from the excess via an exponential. All helpers follow
// the reference pseudocode at
// https://eips.ethereum.org/EIPS/eip-4844#helpers.
package eip4844

import "math/big"

// Blob gas constants.
const (
	// FieldElementBytes is the size of a single field element in bytes.
	FieldElementBytes uint64 = 32

	// FieldElementsPerBlob is the number of field elements in one blob.
	FieldElementsPerBlob uint64 = 4096

	// DataGasPerBlob is the gas consumption of a single blob.
	DataGasPerBlob uint64 = 131_072 // 32 * 4096 = 2^17

	// MaxDataGasPerBlock is the maximum blob gas in a single block.
	MaxDataGasPerBlock uint64 = 786_432 // 6 blobs

	// TargetDataGasPerBlock is the target blob gas per block.
	TargetDataGasPerBlock uint64 = 393_216 // 3 blobs

	// MaxBlobsPerBlock is the maximum number of blobs in a single block.
	MaxBlobsPerBlock = int(MaxDataGasPerBlock / DataGasPerBlob)

	// TargetBlobsPerBlock is the target number of blobs per block.
	TargetBlobsPerBlock = TargetDataGasPerBlock / DataGasPerBlob

	// BlobGaspriceUpdateFraction controls the maximum rate of change of
	// the blob gas price.
	BlobGaspriceUpdateFraction uint64 = 3_338_477

	// MinBlobGasprice is the minimum price of a blob.
	MinBlobGasprice uint64 = 1

	// VersionedHashVersionKZG is the version byte of a KZG commitment hash.
	VersionedHashVersionKZG byte = 0x01
)

// CalcExcessBlobGas computes a block's excess_blob_gas from the parent
// header's excess_blob_gas and blob_gas_used. The result saturates at zero
// when the parent block was below target.
func CalcExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed uint64) uint64 {
	sum := parentExcessBlobGas + parentBlobGasUsed
	if sum < TargetDataGasPerBlock {
		return 0
	}
	return sum - TargetDataGasPerBlock
}

// CalcBlobGasprice computes the blob gas price from a header's excess blob
// gas field. The result exceeds 64 bits for large excess values.
func CalcBlobGasprice(excessBlobGas uint64) *big.Int {
	return fakeExponential(
		new(big.Int).SetUint64(MinBlobGasprice),
		new(big.Int).SetUint64(excessBlobGas),
		new(big.Int).SetUint64(BlobGaspriceUpdateFraction),
	)
}

// fakeExponential approximates factor * e ** (numerator / denominator)
// using Taylor expansion, per the EIP-4844 reference pseudocode.
// denominator must be non-zero.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	output := new(big.Int)
	accum := new(big.Int).Mul(factor, denominator)
	for i := 1; accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, big.NewInt(int64(i)))
	}
	return output.Div(output, denominator)
}
