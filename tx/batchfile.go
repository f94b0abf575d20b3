package tx

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spacesprotocol/subspacer/types"
)

// BatchFile is the JSON envelope clients hand to the registry: the space
// label plus the staged transactions for it. Produced by the subs CLI and
// consumed by "registry add".
type BatchFile struct {
	Space string `json:"space"`
	*Builder
}

// NewBatchFile creates an empty batch file for a space.
func NewBatchFile(space string) *BatchFile {
	return &BatchFile{Space: space, Builder: NewBuilder()}
}

// ReadBatchFile decodes and validates a batch file.
func ReadBatchFile(r io.Reader) (*BatchFile, error) {
	var bf BatchFile
	if err := json.NewDecoder(r).Decode(&bf); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	if bf.Builder == nil {
		bf.Builder = NewBuilder()
	}
	if !ValidLabel(bf.Space) {
		return nil, fmt.Errorf("batch space %q: %w", bf.Space, types.ErrInvalidName)
	}
	if bf.Version != Version {
		return nil, fmt.Errorf("batch version %d: %w", bf.Version, types.ErrVersionMismatch)
	}
	for _, t := range bf.Transactions {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return &bf, nil
}

// Write encodes the batch file as indented JSON.
func (bf *BatchFile) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bf)
}
