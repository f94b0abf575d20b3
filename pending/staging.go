package pending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spacesprotocol/subspacer/tx"
)

// Load replaces the pool contents with the staging file at path. A missing
// file leaves the pool empty; that is the normal first-run state.
func (p *Pool) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading staging file: %w", err)
	}

	staged := make(map[string]*tx.Builder)
	if err := json.Unmarshal(data, &staged); err != nil {
		return fmt.Errorf("parsing staging file: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builders = make(map[string]*tx.Builder, len(staged))
	p.count = 0
	for space, b := range staged {
		if b == nil || len(b.Transactions) == 0 {
			continue
		}
		for _, t := range b.Transactions {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("staging file space %q subspace %q: %w", space, t.Name, err)
			}
		}
		p.builders[space] = b
		p.count += len(b.Transactions)
	}
	return nil
}

// Save writes the pool contents to the staging file at path. The write is
// atomic so a crash mid-save never corrupts the staged set.
func (p *Pool) Save(path string) error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.builders, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding staging file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing staging file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing staging file: %w", err)
	}
	return nil
}
