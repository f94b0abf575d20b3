package pending

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/spacesprotocol/subspacer/config"
	"github.com/spacesprotocol/subspacer/keys"
	"github.com/spacesprotocol/subspacer/logging"
	"github.com/spacesprotocol/subspacer/tx"
	"github.com/spacesprotocol/subspacer/types"
)

func newPool(t *testing.T, maxTxs int) *Pool {
	t.Helper()
	p, err := New(config.PendingConfig{
		MaxTxs:    maxTxs,
		CacheSize: 64,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return p
}

func registration(t *testing.T, name string) (*tx.Transaction, *secp256k1.PrivateKey) {
	t.Helper()
	priv, err := keys.Generate()
	require.NoError(t, err)
	owner := keys.OwnerKey(priv)
	return &tx.Transaction{
		Name:  name,
		Owner: owner[:],
	}, priv
}

func TestPoolAdd(t *testing.T) {
	t.Run("stages under its space", func(t *testing.T) {
		p := newPool(t, 10)
		reg, _ := registration(t, "alpha")
		require.NoError(t, p.Add("example", reg))

		require.Equal(t, 1, p.Size())
		require.Equal(t, []string{"example"}, p.Spaces())

		stats := p.Stats()
		require.Equal(t, 1, stats.Spaces)
		require.Equal(t, 1, stats.Registrations)
		require.Equal(t, 0, stats.Updates)
	})

	t.Run("rejects invalid space label", func(t *testing.T) {
		p := newPool(t, 10)
		reg, _ := registration(t, "alpha")
		require.ErrorIs(t, p.Add("Not-Valid", reg), types.ErrInvalidName)
	})

	t.Run("rejects malformed transaction", func(t *testing.T) {
		p := newPool(t, 10)
		err := p.Add("example", &tx.Transaction{Name: "alpha", Owner: []byte{0x02}})
		require.ErrorIs(t, err, types.ErrInvalidOwnerKey)
		require.Equal(t, 0, p.Size())
	})

	t.Run("rejects duplicate subspace in same space", func(t *testing.T) {
		p := newPool(t, 10)
		reg, _ := registration(t, "alpha")
		require.NoError(t, p.Add("example", reg))

		again, _ := registration(t, "alpha")
		require.ErrorIs(t, p.Add("example", again), types.ErrDuplicateName)
	})

	t.Run("same subspace under another space is independent", func(t *testing.T) {
		p := newPool(t, 10)
		reg, _ := registration(t, "alpha")
		require.NoError(t, p.Add("example", reg))

		other, _ := registration(t, "alpha")
		require.NoError(t, p.Add("other", other))
		require.Equal(t, 2, p.Size())
	})

	t.Run("enforces capacity across spaces", func(t *testing.T) {
		p := newPool(t, 2)
		a, _ := registration(t, "alpha")
		b, _ := registration(t, "beta")
		c, _ := registration(t, "gamma")
		require.NoError(t, p.Add("example", a))
		require.NoError(t, p.Add("other", b))
		require.ErrorIs(t, p.Add("example", c), types.ErrPendingFull)
	})
}

func TestPoolMerge(t *testing.T) {
	p := newPool(t, 10)

	b := tx.NewBuilder()
	a, _ := registration(t, "alpha")
	c, _ := registration(t, "beta")
	require.NoError(t, b.Add(a))
	require.NoError(t, b.Add(c))

	require.NoError(t, p.Merge("example", b))
	require.Equal(t, 2, p.Size())

	bad := &tx.Builder{Version: 9}
	require.ErrorIs(t, p.Merge("example", bad), types.ErrVersionMismatch)
}

func TestPoolTakeRestore(t *testing.T) {
	t.Run("take empties the pool", func(t *testing.T) {
		p := newPool(t, 10)
		reg, _ := registration(t, "alpha")
		require.NoError(t, p.Add("example", reg))

		snap, err := p.Take()
		require.NoError(t, err)
		require.Len(t, snap, 1)
		require.Equal(t, 0, p.Size())

		_, err = p.Take()
		require.ErrorIs(t, err, types.ErrNoPendingChanges)
	})

	t.Run("restore returns the snapshot", func(t *testing.T) {
		p := newPool(t, 10)
		reg, _ := registration(t, "alpha")
		require.NoError(t, p.Add("example", reg))

		snap, err := p.Take()
		require.NoError(t, err)

		p.Restore(snap)
		require.Equal(t, 1, p.Size())
		require.Equal(t, []string{"example"}, p.Spaces())
	})

	t.Run("restore keeps transactions staged meanwhile", func(t *testing.T) {
		p := newPool(t, 10)
		reg, _ := registration(t, "alpha")
		require.NoError(t, p.Add("example", reg))

		snap, err := p.Take()
		require.NoError(t, err)

		mid, _ := registration(t, "beta")
		require.NoError(t, p.Add("example", mid))
		late, _ := registration(t, "gamma")
		require.NoError(t, p.Add("other", late))

		p.Restore(snap)
		require.Equal(t, 3, p.Size())

		stats := p.PerSpace()
		require.Equal(t, 2, stats["example"].Transactions)
		require.Equal(t, 1, stats["other"].Transactions)
	})
}

func TestPoolReplayGuard(t *testing.T) {
	p := newPool(t, 10)
	reg, priv := registration(t, "alpha")
	require.NoError(t, p.Add("example", reg))

	snap, err := p.Take()
	require.NoError(t, err)
	p.MarkCommitted(snap)

	// Re-submitting the committed registration byte for byte is a replay.
	replay := &tx.Transaction{Name: reg.Name, Owner: reg.Owner}
	require.ErrorIs(t, p.Add("example", replay), types.ErrDuplicateName)

	// A renewal of the same subspace carries the next sequence and passes.
	renew := &tx.Transaction{Name: reg.Name, Owner: reg.Owner}
	require.NoError(t, renew.Sign("example", priv))
	require.NoError(t, p.Add("example", renew))
}

func TestPoolStaging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uncommitted.json")

	p := newPool(t, 10)
	reg, priv := registration(t, "alpha")
	require.NoError(t, p.Add("example", reg))

	owner := keys.OwnerKey(priv)
	upd := &tx.Transaction{Name: "beta", Owner: owner[:], Sequence: 3}
	require.NoError(t, upd.Sign("example", priv))
	require.NoError(t, p.Add("example", upd))

	require.NoError(t, p.Save(path))

	t.Run("round trips through the staging file", func(t *testing.T) {
		loaded := newPool(t, 10)
		require.NoError(t, loaded.Load(path))

		require.Equal(t, 2, loaded.Size())
		stats := loaded.Stats()
		require.Equal(t, 1, stats.Registrations)
		require.Equal(t, 1, stats.Updates)
	})

	t.Run("missing file loads empty", func(t *testing.T) {
		loaded := newPool(t, 10)
		require.NoError(t, loaded.Load(filepath.Join(t.TempDir(), "absent.json")))
		require.Equal(t, 0, loaded.Size())
	})

	t.Run("load rejects malformed staged transactions", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "uncommitted.json")
		writeFile(t, bad, `{"example":{"version":0,"transactions":[{"name":"UPPER","owner":"02"}]}}`)

		loaded := newPool(t, 10)
		require.ErrorIs(t, loaded.Load(bad), types.ErrInvalidName)
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestPoolFlush(t *testing.T) {
	p := newPool(t, 10)
	reg, _ := registration(t, "alpha")
	require.NoError(t, p.Add("example", reg))

	p.Flush()
	require.Equal(t, 0, p.Size())
	require.Empty(t, p.Spaces())
}
