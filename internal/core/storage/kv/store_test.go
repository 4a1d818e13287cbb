package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-topicswarm/internal/core/storage/engine"
	"github.com/dep2p/go-topicswarm/internal/core/storage/engine/badger"
)

type record struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func testStore(t *testing.T, prefix string) (*Store, engine.Engine) {
	t.Helper()
	eng, err := badger.Open(badger.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return New(eng, []byte(prefix)), eng
}

func TestStore_PrefixIsolation(t *testing.T) {
	s, eng := testStore(t, "t/")
	other := New(eng, []byte("x/"))

	require.NoError(t, s.Put([]byte("k"), []byte("1")))
	require.NoError(t, other.Put([]byte("k"), []byte("2")))

	raw, err := eng.Get([]byte("t/k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), raw)

	v, err := other.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	require.NoError(t, s.Delete([]byte("k")))
	_, err = s.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrNotFound)
	_, err = other.Get([]byte("k"))
	assert.NoError(t, err)
}

func TestStore_JSONAndScan(t *testing.T) {
	s, _ := testStore(t, "t/")
	sub := s.Sub([]byte("topic/"))

	require.NoError(t, sub.PutJSON([]byte("a"), record{"10.0.0.1", 1}, time.Hour))
	require.NoError(t, sub.PutJSON([]byte("b"), record{"10.0.0.2", 2}, 0))

	var r record
	require.NoError(t, sub.GetJSON([]byte("a"), &r))
	assert.Equal(t, record{"10.0.0.1", 1}, r)

	var keys []string
	require.NoError(t, s.Scan([]byte("topic/"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	assert.Equal(t, []string{"topic/a", "topic/b"}, keys)

	n, err := sub.DeletePrefix(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t.Log("✅ JSON 读写与前缀遍历")
}
