package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineCreatesBooksLazily(t *testing.T) {
	engine := NewEngine(nil)

	_, found := engine.Lookup("UBI/ETH")
	assert.False(t, found)

	b := engine.Book("UBI/ETH")
	require.NotNil(t, b)
	assert.Equal(t, "UBI/ETH", b.Pair())

	// Same pair, same book.
	assert.Same(t, b, engine.Book("UBI/ETH"))
	got, found := engine.Lookup("UBI/ETH")
	require.True(t, found)
	assert.Same(t, b, got)

	assert.NotSame(t, b, engine.Book("WBTC/ETH"))
}

func TestEngineOptionsFactory(t *testing.T) {
	pub := NewMemoryPublisher()
	engine := NewEngine(func(pair string) []Option {
		return []Option{WithPublisher(pub)}
	})

	b := engine.Book("UBI/ETH")
	require.NoError(t, b.DepositCntr("alice", amt("1")))
	require.NoError(t, b.CreateOrder("alice", "101", 5900, amt("1"), TermsGTCNoGasTopup, 10))

	assert.NotEmpty(t, pub.ClientOrders())
	assert.NotEmpty(t, pub.MarketOrders())
}

func TestEngineRestoreAndRange(t *testing.T) {
	engine := NewEngine(nil)
	engine.Book("UBI/ETH")
	engine.Book("WBTC/ETH")

	pairs := map[string]bool{}
	engine.Range(func(b *Book) bool {
		pairs[b.Pair()] = true
		return true
	})
	assert.Equal(t, map[string]bool{"UBI/ETH": true, "WBTC/ETH": true}, pairs)

	// Restore replaces the live book for its pair.
	old := engine.Book("UBI/ETH")
	require.NoError(t, old.DepositCntr("alice", amt("1")))
	restored := RestoreBook(old.Snapshot())
	engine.Restore(restored)
	assert.Same(t, restored, engine.Book("UBI/ETH"))

	// Range can stop early.
	count := 0
	engine.Range(func(*Book) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
