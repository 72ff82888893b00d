package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "secrets")
	s := NewFileStore(dir)

	_, err := s.Get(ctx, APIKeyName)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, APIKeyName, "sk-abc"))
	got, err := s.Get(ctx, APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", got)

	info, err := os.Stat(filepath.Join(dir, APIKeyName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMode), info.Mode().Perm())

	require.NoError(t, s.Delete(ctx, APIKeyName))
	_, err = s.Get(ctx, APIKeyName)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, APIKeyName), "deleting a missing secret is not an error")
}

func TestFileStore_trailingNewlineIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, APIKeyName), []byte("sk-edited\n"), 0o600))

	got, err := NewFileStore(dir).Get(context.Background(), APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-edited", got)
}

func TestFileStore_rejectsEscapingKeys(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, key := range []string{"", "  ", ".", "../outside", "/etc/passwd"} {
		err := s.Put(context.Background(), key, "x")
		assert.Error(t, err, "key %q", key)
	}
}

func TestFileStore_canceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileStore(t.TempDir()).Get(ctx, APIKeyName)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnvStore(t *testing.T) {
	ctx := context.Background()
	t.Setenv("EXAMCHAT_TEST_KEY", "sk-env")
	s := NewEnvStore(APIKeyName, "EXAMCHAT_TEST_KEY")

	got, err := s.Get(ctx, APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", got)

	_, err = s.Get(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, APIKeyName, "x"), ErrReadOnly)
	assert.ErrorIs(t, s.Delete(ctx, APIKeyName), ErrReadOnly)

	t.Setenv("EXAMCHAT_TEST_KEY", "")
	_, err = s.Get(ctx, APIKeyName)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChain_envBeforeFile(t *testing.T) {
	ctx := context.Background()
	file := NewFileStore(t.TempDir())
	require.NoError(t, file.Put(ctx, APIKeyName, "sk-file"))
	t.Setenv("EXAMCHAT_TEST_KEY", "sk-env")

	chain := NewChain(NewEnvStore(APIKeyName, "EXAMCHAT_TEST_KEY"), file)
	got, err := chain.Get(ctx, APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", got)

	t.Setenv("EXAMCHAT_TEST_KEY", "")
	got, err = chain.Get(ctx, APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", got)
}

func TestChain_writesSkipReadOnlyStores(t *testing.T) {
	ctx := context.Background()
	file := NewFileStore(t.TempDir())
	chain := NewChain(NewEnvStore(APIKeyName, "EXAMCHAT_UNSET_VAR"), nil, file)

	require.NoError(t, chain.Put(ctx, APIKeyName, "sk-new"))
	got, err := file.Get(ctx, APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-new", got)

	require.NoError(t, chain.Delete(ctx, APIKeyName))
	_, err = chain.Get(ctx, APIKeyName)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, NewChain().Put(ctx, APIKeyName, "x"), ErrReadOnly)
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingStore) Put(context.Context, string, string) error  { return f.err }
func (f failingStore) Delete(context.Context, string) error       { return f.err }

func TestChain_reportsNonNotFoundErrors(t *testing.T) {
	boom := errors.New("permission denied")
	_, err := NewChain(failingStore{err: boom}).Get(context.Background(), APIKeyName)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	file := NewFileStore(t.TempDir())
	require.NoError(t, file.Put(ctx, APIKeyName, "   "))

	_, err := Lookup(ctx, file, APIKeyName)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Lookup(ctx, nil, APIKeyName)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, file.Put(ctx, APIKeyName, " sk-x "))
	got, err := Lookup(ctx, file, APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-x", got)
}
