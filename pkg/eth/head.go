package eth

import (
	"math/big"

	"github.com/ethfeed/ethfeed-go/pkg/eip4844"
)

// Head is the block header payload delivered by a newHeads subscription.
// Optional fields are nil for blocks predating the fork that introduced
// them.
type Head struct {
	Number     Uint64 `json:"number"`
	Hash       Hash   `json:"hash"`
	ParentHash Hash   `json:"parentHash"`
	Timestamp  Uint64 `json:"timestamp"`
	GasLimit   Uint64 `json:"gasLimit"`
	GasUsed    Uint64 `json:"gasUsed"`

	// BaseFee is the EIP-1559 base fee per gas.
	BaseFee *Big `json:"baseFeePerGas,omitempty"`

	// Blob gas accounting per EIP-4844.
	BlobGasUsed   *Uint64 `json:"blobGasUsed,omitempty"`
	ExcessBlobGas *Uint64 `json:"excessBlobGas,omitempty"`
}

// BlobFee returns the blob gas price charged in this block, or nil for
// headers without blob gas fields.
func (h *Head) BlobFee() *big.Int {
	if h.ExcessBlobGas == nil {
		return nil
	}
	return eip4844.CalcBlobGasprice(uint64(*h.ExcessBlobGas))
}

// NextBlobFee returns the blob gas price of the block following this one,
// derived from this header's blob gas fields. Nil for headers without blob
// gas fields.
func (h *Head) NextBlobFee() *big.Int {
	if h.ExcessBlobGas == nil || h.BlobGasUsed == nil {
		return nil
	}
	excess := eip4844.CalcExcessBlobGas(uint64(*h.ExcessBlobGas), uint64(*h.BlobGasUsed))
	return eip4844.CalcBlobGasprice(excess)
}
