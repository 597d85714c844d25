package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePlainValues(t *testing.T) {
	r := &Resolver{stores: map[string]SecretStore{}}
	r.Register("mem", NewMemoryStore())

	for _, v := range []string{"hunter2", "", "pa:ss", "unknown:scheme"} {
		got, err := r.Resolve(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestResolveFromStore(t *testing.T) {
	mem := NewMemoryStore()
	require.NoError(t, mem.Set("db/password", []byte("s3cret")))
	r := &Resolver{stores: map[string]SecretStore{}}
	r.Register("MEM", mem)

	got, err := r.Resolve("mem:db/password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = r.Resolve("mem:absent")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mem.Delete("db/password"))
	_, err = r.Resolve("mem:db/password")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveFromEnv(t *testing.T) {
	t.Setenv("SQLPLUGIN_TEST_PASSWORD", "from-env")
	r := NewResolver()

	got, err := r.Resolve("env:SQLPLUGIN_TEST_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	_, err = r.Resolve("env:SQLPLUGIN_TEST_UNSET_VARIABLE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := r.Store("keychain")
	assert.True(t, ok)
}
