package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/spacesprotocol/subspacer/types"
)

// Entry is one decoded transaction from a canonical transaction set.
type Entry struct {
	// Key is the subspace identifier the entry touches.
	Key types.Hash

	// Owner is the post-transaction owner public key.
	Owner [types.OwnerKeySize]byte

	// Sequence is the record sequence the signer observed.
	Sequence uint64

	// Witness is empty for registrations, a signature envelope otherwise.
	Witness []byte
}

// IsRegistration reports whether the entry registers a new subspace.
func (e *Entry) IsRegistration() bool {
	return len(e.Witness) == 0
}

// Reader decodes a canonical transaction set.
type Reader struct {
	raw []byte
}

// NewReader wraps canonical transaction set bytes. It fails if the header
// is truncated or the version is unsupported.
func NewReader(raw []byte) (*Reader, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("transaction set shorter than header: %w", types.ErrInvalidWitness)
	}
	if raw[0] != Version {
		return nil, fmt.Errorf("version %d: %w", raw[0], types.ErrVersionMismatch)
	}
	return &Reader{raw: raw}, nil
}

// Version returns the format version of the transaction set.
func (r *Reader) Version() byte {
	return r.raw[0]
}

// SpaceHash returns the identifier of the space the set applies to.
func (r *Reader) SpaceHash() types.Hash {
	return types.Hash(r.raw[1:HeaderSize])
}

// Header returns the raw header bytes.
func (r *Reader) Header() []byte {
	return r.raw[:HeaderSize]
}

// Entries decodes the ordered transaction list.
func (r *Reader) Entries() ([]*Entry, error) {
	var entries []*Entry
	data := r.raw[HeaderSize:]

	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("truncated entry length: %w", types.ErrInvalidWitness)
		}
		payload := int(binary.LittleEndian.Uint16(data))
		data = data[2:]
		if payload < EntryFixedSize || payload > len(data) {
			return nil, fmt.Errorf("entry payload %d bytes: %w", payload, types.ErrInvalidWitness)
		}

		var e Entry
		e.Key = types.Hash(data[:types.HashSize])
		copy(e.Owner[:], data[types.HashSize:types.HashSize+types.OwnerKeySize])
		e.Sequence = binary.BigEndian.Uint64(data[types.HashSize+types.OwnerKeySize : EntryFixedSize])

		witness := data[EntryFixedSize:payload]
		if len(witness) > 0 {
			if len(witness) != types.WitnessSize {
				return nil, fmt.Errorf("witness %d bytes: %w", len(witness), types.ErrInvalidWitness)
			}
			if witness[0] != types.WitnessTypeSignature {
				return nil, fmt.Errorf("witness type 0x%02x: %w", witness[0], types.ErrInvalidWitness)
			}
			e.Witness = witness
		}

		entries = append(entries, &e)
		data = data[payload:]
	}
	return entries, nil
}
