package types

import (
	"encoding/binary"
	"fmt"
)

// RecordSize is the fixed size of an encoded subspace record.
const RecordSize = OwnerKeySize + 8 + 8

// Record is the ownership record stored at a subspace identifier.
// Records are mutated only through validated transactions and never deleted.
type Record struct {
	// Owner is the SEC1 compressed public key of the current owner.
	Owner [OwnerKeySize]byte

	// Sequence increases by one on every successful update.
	// It is part of the signed message, so a signature authorizes
	// exactly one state transition of this record.
	Sequence uint64

	// ExpiresAt is the unix time at which the registration lapses.
	// Registration and renewal extend it; transfer preserves it.
	ExpiresAt int64
}

// Encode returns the fixed-layout binary encoding of the record:
// owner (33 bytes) || sequence (8 bytes BE) || expires_at (8 bytes BE).
func (r *Record) Encode() []byte {
	buf := make([]byte, RecordSize)
	copy(buf, r.Owner[:])
	binary.BigEndian.PutUint64(buf[OwnerKeySize:], r.Sequence)
	binary.BigEndian.PutUint64(buf[OwnerKeySize+8:], uint64(r.ExpiresAt))
	return buf
}

// DecodeRecord decodes a record from its binary encoding.
func DecodeRecord(data []byte) (*Record, error) {
	if len(data) != RecordSize {
		return nil, fmt.Errorf("record must be %d bytes, got %d: %w", RecordSize, len(data), ErrInvalidRecord)
	}
	var r Record
	copy(r.Owner[:], data[:OwnerKeySize])
	r.Sequence = binary.BigEndian.Uint64(data[OwnerKeySize:])
	r.ExpiresAt = int64(binary.BigEndian.Uint64(data[OwnerKeySize+8:]))
	return &r, nil
}
