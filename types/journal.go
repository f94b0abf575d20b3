package types

import (
	"encoding/binary"
	"fmt"
)

// Journal is the public output of one proved batch execution over a space:
// the root transition, the operation counts and the affected subspace
// identifiers. FinalRoot is reachable from InitialRoot by applying exactly
// the transactions whose identifiers are listed, in order, and no others.
type Journal struct {
	Space       Hash
	InitialRoot Hash
	FinalRoot   Hash
	Registered  uint64
	Updated     uint64
	Affected    []Hash
}

// Encode returns the deterministic binary encoding of the journal.
func (j *Journal) Encode() []byte {
	buf := make([]byte, 0, 3*HashSize+3*binary.MaxVarintLen64+len(j.Affected)*HashSize)
	buf = append(buf, j.Space...)
	buf = append(buf, j.InitialRoot...)
	buf = append(buf, j.FinalRoot...)
	buf = binary.AppendUvarint(buf, j.Registered)
	buf = binary.AppendUvarint(buf, j.Updated)
	buf = binary.AppendUvarint(buf, uint64(len(j.Affected)))
	for _, id := range j.Affected {
		buf = append(buf, id...)
	}
	return buf
}

// decodeJournal decodes one journal from data, returning the remainder.
func decodeJournal(data []byte) (*Journal, []byte, error) {
	if len(data) < 3*HashSize {
		return nil, nil, fmt.Errorf("journal shorter than roots: %w", ErrInvalidRecord)
	}
	var j Journal
	j.Space = Hash(append([]byte(nil), data[:HashSize]...))
	j.InitialRoot = Hash(append([]byte(nil), data[HashSize:2*HashSize]...))
	j.FinalRoot = Hash(append([]byte(nil), data[2*HashSize:3*HashSize]...))
	data = data[3*HashSize:]

	var n int
	j.Registered, n = binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("journal registered count: %w", ErrInvalidRecord)
	}
	data = data[n:]
	j.Updated, n = binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("journal updated count: %w", ErrInvalidRecord)
	}
	data = data[n:]

	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("journal affected count: %w", ErrInvalidRecord)
	}
	data = data[n:]
	// Divide instead of multiplying: count*HashSize can wrap for a
	// crafted count and sneak past the bound.
	if count > uint64(len(data))/HashSize {
		return nil, nil, fmt.Errorf("journal affected list truncated: %w", ErrInvalidRecord)
	}
	for i := uint64(0); i < count; i++ {
		j.Affected = append(j.Affected, Hash(append([]byte(nil), data[:HashSize]...)))
		data = data[HashSize:]
	}
	return &j, data, nil
}

// EncodeJournals encodes an ordered list of journals, one per space,
// as committed by a single receipt.
func EncodeJournals(journals []Journal) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(journals)))
	for i := range journals {
		buf = append(buf, journals[i].Encode()...)
	}
	return buf
}

// DecodeJournals decodes a list of journals produced by EncodeJournals.
func DecodeJournals(data []byte) ([]Journal, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("journal list count: %w", ErrInvalidRecord)
	}
	data = data[n:]

	// A journal is at least its three roots; anything claiming more
	// journals than the payload can hold is malformed.
	if count > uint64(len(data))/(3*HashSize) {
		return nil, fmt.Errorf("journal list truncated: %w", ErrInvalidRecord)
	}

	journals := make([]Journal, 0, count)
	for i := uint64(0); i < count; i++ {
		j, rest, err := decodeJournal(data)
		if err != nil {
			return nil, err
		}
		journals = append(journals, *j)
		data = rest
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("trailing bytes after journals: %w", ErrInvalidRecord)
	}
	return journals, nil
}
