package types

import (
	"errors"
)

// Validation errors. These are client-caused: the transaction itself is
// invalid against the current record state. They are surfaced per
// transaction and never abort a whole commit attempt.
var (
	// ErrNameExists is returned when registering a subspace that already exists.
	ErrNameExists = errors.New("subspace already registered")

	// ErrNameNotFound is returned when updating a subspace that does not exist.
	ErrNameNotFound = errors.New("subspace not found")

	// ErrInvalidSignature is returned when a witness signature does not verify
	// against the current owner.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrStaleSequence is returned when a transaction was signed against a
	// sequence number the record has already moved past.
	ErrStaleSequence = errors.New("stale sequence number")

	// ErrInvalidOwnerKey is returned when an owner public key is malformed.
	ErrInvalidOwnerKey = errors.New("invalid owner public key")

	// ErrInvalidWitness is returned when a witness envelope is malformed or
	// carries an unsupported witness type.
	ErrInvalidWitness = errors.New("invalid witness")

	// ErrInvalidName is returned when a space or subspace label is malformed.
	ErrInvalidName = errors.New("invalid name")

	// ErrDuplicateName is returned when the same subspace appears twice in
	// one builder.
	ErrDuplicateName = errors.New("duplicate subspace name")

	// ErrInvalidRecord is returned when a stored record cannot be decoded.
	ErrInvalidRecord = errors.New("invalid record encoding")

	// ErrVersionMismatch is returned when a transaction set carries an
	// unsupported format version.
	ErrVersionMismatch = errors.New("unsupported transaction version")
)

// Integrity errors. A supplied witness does not match the claimed root.
// Always fatal to the batch attempt; never treated as absence.
var (
	// ErrProofMismatch is returned when a merkle proof fails verification.
	ErrProofMismatch = errors.New("proof does not match root")

	// ErrStaleRoot is returned when a lookup or proof targets an unknown
	// or superseded root.
	ErrStaleRoot = errors.New("stale root")
)

// Proving and receipt errors.
var (
	// ErrProvingFailed is returned on resource or connectivity failure
	// during proving. The pending set is preserved and the attempt may be
	// retried.
	ErrProvingFailed = errors.New("proving failed")

	// ErrBatchRejected is returned when a prover rejects a batch as invalid.
	// Batches are validated locally before proving, so this signals an
	// orchestrator bug rather than a client error.
	ErrBatchRejected = errors.New("prover rejected batch")

	// ErrReceiptVerification is returned when a receipt fails verification.
	// The commit must abort and the committed root must not advance.
	ErrReceiptVerification = errors.New("receipt verification failed")
)

// Orchestrator errors.
var (
	// ErrCommitInFlight is returned when a commit is attempted while a
	// proving attempt is already in progress.
	ErrCommitInFlight = errors.New("commit already in flight")

	// ErrNoPendingChanges is returned when a commit is attempted with an
	// empty pending set.
	ErrNoPendingChanges = errors.New("no changes to prove and commit")

	// ErrPendingFull is returned when the pending set cannot accept more
	// transactions before a commit.
	ErrPendingFull = errors.New("pending set is full")

	// ErrReceiptNotFound is returned when a receipt cannot be found in the
	// receipt store.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrCommitExists is returned when saving a commit at a sequence that
	// is already occupied.
	ErrCommitExists = errors.New("commit already exists")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// validationErrors is the set of errors classified as client-caused.
var validationErrors = []error{
	ErrNameExists,
	ErrNameNotFound,
	ErrInvalidSignature,
	ErrStaleSequence,
	ErrInvalidOwnerKey,
	ErrInvalidWitness,
	ErrInvalidName,
	ErrDuplicateName,
	ErrVersionMismatch,
}

// IsValidation reports whether err is a client-caused validation error,
// as opposed to an integrity or proving failure. The orchestrator drops
// the offending transaction for validation errors and aborts the whole
// attempt for everything else.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
