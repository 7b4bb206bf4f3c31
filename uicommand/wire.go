package uicommand

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Batch is the wire envelope of one flush.
type Batch struct {
	ContextID int32     `cbor:"1,keyasint"`
	Commands  []Command `cbor:"2,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("uicommand: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalBatch serializes a batch to canonical CBOR.
func MarshalBatch(b *Batch) ([]byte, error) {
	return cborEncMode.Marshal(b)
}

// UnmarshalBatch deserializes a batch from CBOR bytes.
func UnmarshalBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("uicommand: unmarshal batch: %w", err)
	}
	return &b, nil
}
