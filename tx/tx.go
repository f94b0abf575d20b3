// Package tx defines registry transactions, their canonical wire encoding
// and the per-space transaction set builder.
//
// A transaction set is encoded as a header followed by an ordered list of
// entries:
//
//	Header:  1-byte version || 32-byte space hash
//	Entry:   2-byte LE length || 32-byte subspace hash || 33-byte owner ||
//	         8-byte BE sequence || witness
//
// An entry with an empty witness is a registration; an entry carrying a
// signature witness is an update (transfer or renewal). The witness is a
// type tag (0x00) followed by a 64-byte compact ECDSA signature over the
// canonical signing message.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/spacesprotocol/subspacer/keys"
	"github.com/spacesprotocol/subspacer/types"
)

const (
	// Version is the transaction set format version.
	Version byte = 0

	// HeaderSize is the size of a transaction set header.
	HeaderSize = 1 + types.HashSize

	// EntryFixedSize is the size of an entry without its witness.
	EntryFixedSize = types.HashSize + types.OwnerKeySize + 8

	// SigningMessageSize is the size of the canonical signing message.
	SigningMessageSize = HeaderSize + EntryFixedSize
)

// Transaction is a single staged operation on a subspace.
// The JSON form is the batch-file representation consumed by "registry add".
type Transaction struct {
	// Name is the subspace label (without the @space suffix).
	Name string `json:"name"`

	// Owner is the SEC1 compressed public key the record will hold after
	// this transaction: the registrant for registrations, the recipient
	// for transfers, the current owner for renewals.
	Owner HexBytes `json:"owner"`

	// Sequence is the record's current sequence number. It must match the
	// committed record for updates and be zero for registrations.
	Sequence uint64 `json:"sequence,omitempty"`

	// Witness authorizes updates: a type tag followed by a compact
	// signature by the current owner. Empty for registrations.
	Witness []byte `json:"witness,omitempty"`
}

// IsRegistration reports whether the transaction registers a new subspace.
func (t *Transaction) IsRegistration() bool {
	return len(t.Witness) == 0
}

// Key returns the subspace identifier this transaction touches.
func (t *Transaction) Key() types.Hash {
	return types.HashName(t.Name)
}

// Validate checks the transaction shape without consulting any state.
func (t *Transaction) Validate() error {
	if !ValidLabel(t.Name) {
		return fmt.Errorf("subspace %q: %w", t.Name, types.ErrInvalidName)
	}
	if len(t.Owner) != types.OwnerKeySize {
		return fmt.Errorf("owner must be %d bytes, got %d: %w",
			types.OwnerKeySize, len(t.Owner), types.ErrInvalidOwnerKey)
	}
	switch {
	case len(t.Witness) == 0:
		if t.Sequence != 0 {
			return fmt.Errorf("registration must carry sequence 0: %w", types.ErrInvalidName)
		}
	case len(t.Witness) == types.WitnessSize:
		if t.Witness[0] != types.WitnessTypeSignature {
			return fmt.Errorf("witness type 0x%02x: %w", t.Witness[0], types.ErrInvalidWitness)
		}
	default:
		return fmt.Errorf("witness must be empty or %d bytes, got %d: %w",
			types.WitnessSize, len(t.Witness), types.ErrInvalidWitness)
	}
	return nil
}

// Sign attaches a signature witness authorizing this transaction,
// signed by the current owner of the subspace.
func (t *Transaction) Sign(space string, priv *secp256k1.PrivateKey) error {
	if len(t.Owner) != types.OwnerKeySize {
		return fmt.Errorf("owner must be %d bytes: %w", types.OwnerKeySize, types.ErrInvalidOwnerKey)
	}
	var owner [types.OwnerKeySize]byte
	copy(owner[:], t.Owner)

	msg := SigningMessage(Version, types.HashName(space), t.Key(), owner, t.Sequence)
	sig := keys.Sign(priv, msg)

	witness := make([]byte, 0, types.WitnessSize)
	witness = append(witness, types.WitnessTypeSignature)
	witness = append(witness, sig[:]...)
	t.Witness = witness
	return nil
}

// SigningMessage builds the canonical message covered by a witness
// signature: header || subspace hash || new owner || sequence. Including
// the record's current sequence makes every signature single-use.
func SigningMessage(version byte, spaceHash, subspaceHash types.Hash, owner [types.OwnerKeySize]byte, sequence uint64) []byte {
	msg := make([]byte, 0, SigningMessageSize)
	msg = append(msg, version)
	msg = append(msg, spaceHash...)
	msg = append(msg, subspaceHash...)
	msg = append(msg, owner[:]...)
	msg = binary.BigEndian.AppendUint64(msg, sequence)
	return msg
}

// HexBytes is a byte slice that marshals to and from a hex string in JSON.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decoding hex: %w", err)
	}
	*h = b
	return nil
}

// ValidLabel reports whether s is a valid space or subspace label:
// non-empty lowercase ascii letters only.
func ValidLabel(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// ParseName splits a fully qualified "label@space" name.
func ParseName(name string) (label, space string, err error) {
	parts := strings.Split(name, "@")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("name must be label@space: %w", types.ErrInvalidName)
	}
	label, space = parts[0], parts[1]
	if !ValidLabel(label) {
		return "", "", fmt.Errorf("subspace label %q: %w", label, types.ErrInvalidName)
	}
	if !ValidLabel(space) {
		return "", "", fmt.Errorf("space label %q: %w", space, types.ErrInvalidName)
	}
	return label, space, nil
}
