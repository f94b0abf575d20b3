package prover

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/spacesprotocol/subspacer/types"
)

// sealDomain separates receipt seals from any other use of the hash.
const sealDomain = "subspacer/seal/v0"

// Receipt is the proof artifact for one committed batch execution. It
// binds a journal to the program identity that produced it; a receipt
// verifies if and only if the journal is the true output of executing
// that program.
type Receipt struct {
	// ImageID is the identity of the guest program that was executed.
	ImageID types.Hash

	// Journal is the encoded list of journals, one per proven space.
	Journal []byte

	// Seal is the attestation binding ImageID and Journal. Mutating any
	// byte of the receipt invalidates it.
	Seal types.Hash
}

// Journals decodes the receipt's journal list.
func (r *Receipt) Journals() ([]types.Journal, error) {
	return types.DecodeJournals(r.Journal)
}

// Encode returns the deterministic binary encoding of the receipt.
func (r *Receipt) Encode() []byte {
	buf := make([]byte, 0, 2*types.HashSize+binary.MaxVarintLen64+len(r.Journal))
	buf = append(buf, r.ImageID...)
	buf = append(buf, r.Seal...)
	buf = binary.AppendUvarint(buf, uint64(len(r.Journal)))
	buf = append(buf, r.Journal...)
	return buf
}

// DecodeReceipt decodes a receipt from its binary encoding.
func DecodeReceipt(data []byte) (*Receipt, error) {
	if len(data) < 2*types.HashSize {
		return nil, fmt.Errorf("receipt truncated: %w", types.ErrReceiptVerification)
	}
	var r Receipt
	r.ImageID = types.Hash(append([]byte(nil), data[:types.HashSize]...))
	r.Seal = types.Hash(append([]byte(nil), data[types.HashSize:2*types.HashSize]...))
	data = data[2*types.HashSize:]

	size, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data[n:])) != size {
		return nil, fmt.Errorf("receipt journal length: %w", types.ErrReceiptVerification)
	}
	r.Journal = append([]byte(nil), data[n:]...)
	return &r, nil
}

// computeSeal derives the attestation for a journal under an image ID.
func computeSeal(imageID types.Hash, journal []byte) types.Hash {
	h := sha256.New()
	h.Write([]byte(sealDomain))
	h.Write(imageID)
	h.Write(journal)
	return h.Sum(nil)
}

// SealVerifier verifies receipts sealed by the proving backends in this
// package.
type SealVerifier struct{}

// NewVerifier creates a verifier for receipts produced by this package's
// proving backends.
func NewVerifier() *SealVerifier {
	return &SealVerifier{}
}

// Verify checks the receipt seal and program identity. Any mismatch,
// including a single flipped byte anywhere in the receipt, fails.
func (v *SealVerifier) Verify(r *Receipt, imageID types.Hash) error {
	if r == nil {
		return fmt.Errorf("nil receipt: %w", types.ErrReceiptVerification)
	}
	if !r.ImageID.Equal(imageID) {
		return fmt.Errorf("receipt is for image %s, expected %s: %w",
			r.ImageID, imageID, types.ErrReceiptVerification)
	}
	want := computeSeal(r.ImageID, r.Journal)
	if subtle.ConstantTimeCompare(want, r.Seal) != 1 {
		return fmt.Errorf("seal mismatch: %w", types.ErrReceiptVerification)
	}
	if _, err := r.Journals(); err != nil {
		return fmt.Errorf("journal undecodable: %w", types.ErrReceiptVerification)
	}
	return nil
}
