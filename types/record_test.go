package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordEncodeDecode(t *testing.T) {
	var owner [OwnerKeySize]byte
	owner[0] = 0x02
	for i := 1; i < OwnerKeySize; i++ {
		owner[i] = byte(i)
	}

	rec := &Record{
		Owner:     owner,
		Sequence:  42,
		ExpiresAt: 1700000000,
	}

	data := rec.Encode()
	require.Len(t, data, RecordSize)

	decoded, err := DecodeRecord(data)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestDecodeRecordRejectsBadLength(t *testing.T) {
	_, err := DecodeRecord(make([]byte, RecordSize-1))
	require.ErrorIs(t, err, ErrInvalidRecord)

	_, err = DecodeRecord(nil)
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestHashName(t *testing.T) {
	h := HashName("bob")
	require.Len(t, []byte(h), HashSize)
	require.True(t, h.Equal(HashBytes([]byte("bob"))))
	require.False(t, h.Equal(HashName("alice")))
}

func TestIsValidation(t *testing.T) {
	require.True(t, IsValidation(ErrNameExists))
	require.True(t, IsValidation(ErrInvalidSignature))
	require.False(t, IsValidation(ErrProofMismatch))
	require.False(t, IsValidation(ErrReceiptVerification))
	require.False(t, IsValidation(nil))
}
