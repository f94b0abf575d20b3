package tx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/spacesprotocol/subspacer/types"
)

// Builder accumulates the staged transactions for one space and compiles
// them into the canonical wire encoding.
type Builder struct {
	Version      byte           `json:"version"`
	Transactions []*Transaction `json:"transactions"`
}

// NewBuilder creates an empty builder for the current format version.
func NewBuilder() *Builder {
	return &Builder{Version: Version}
}

// Add stages a transaction. The transaction must be well formed and its
// subspace must not already be staged in this builder.
func (b *Builder) Add(t *Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for _, existing := range b.Transactions {
		if existing.Name == t.Name {
			return fmt.Errorf("subspace %q: %w", t.Name, types.ErrDuplicateName)
		}
	}
	b.Transactions = append(b.Transactions, t)
	return nil
}

// Merge adds all transactions from another builder of the same version.
func (b *Builder) Merge(other *Builder) error {
	if b.Version != other.Version {
		return fmt.Errorf("versions do not match: %d != %d: %w",
			b.Version, other.Version, types.ErrVersionMismatch)
	}
	for _, t := range other.Transactions {
		if err := b.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the number of staged registrations and updates.
func (b *Builder) Stats() (registrations, updates int) {
	for _, t := range b.Transactions {
		if t.IsRegistration() {
			registrations++
		} else {
			updates++
		}
	}
	return registrations, updates
}

// sort orders transactions deterministically: witnessed updates first,
// then registrations, each group ordered by subspace key. This ordering,
// not submission order, is the committed batch order.
func (b *Builder) sort() {
	sort.SliceStable(b.Transactions, func(i, j int) bool {
		a, c := b.Transactions[i], b.Transactions[j]
		if a.IsRegistration() != c.IsRegistration() {
			return !a.IsRegistration()
		}
		return bytes.Compare(a.Key(), c.Key()) < 0
	})
}

// Build compiles the transaction set into its canonical byte encoding
// for the given space.
func (b *Builder) Build(space string) ([]byte, error) {
	if !ValidLabel(space) {
		return nil, fmt.Errorf("space %q: %w", space, types.ErrInvalidName)
	}
	for _, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	b.sort()

	buf := make([]byte, 0, HeaderSize+len(b.Transactions)*(2+EntryFixedSize+types.WitnessSize))
	buf = append(buf, b.Version)
	buf = append(buf, types.HashName(space)...)

	for _, t := range b.Transactions {
		payload := EntryFixedSize + len(t.Witness)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(payload))
		buf = append(buf, t.Key()...)
		buf = append(buf, t.Owner...)
		buf = binary.BigEndian.AppendUint64(buf, t.Sequence)
		buf = append(buf, t.Witness...)
	}
	return buf, nil
}
