package commitmentdb

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commitments.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	return s, path
}

func TestAddContains(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	c := bytes.Repeat([]byte{0xab}, 32)

	found, err := s.Contains(c)
	require.NoError(t, err)
	assert.False(t, found)

	added, err := s.Add(c)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(c)
	require.NoError(t, err)
	assert.False(t, added)

	found, err = s.Contains(c)
	require.NoError(t, err)
	assert.True(t, found)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInvalidCommitment(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	_, err := s.Add([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidCommitment)
	_, err = s.Contains(nil)
	assert.ErrorIs(t, err, ErrInvalidCommitment)
}

func TestPersistence(t *testing.T) {
	s, path := openTemp(t)
	fixed := time.Unix(1700000000, 0)
	s.now = func() time.Time { return fixed }
	c := bytes.Repeat([]byte{0x01}, 32)
	_, err := s.Add(c)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	found, err := s.Contains(c)
	require.NoError(t, err)
	assert.True(t, found)

	at, found, err := s.UsedAt(c)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, fixed.Equal(at))

	_, found, err = s.UsedAt(bytes.Repeat([]byte{0x02}, 32))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentAddSingleWinner(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	c := bytes.Repeat([]byte{0x42}, 32)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := s.Add(c)
			assert.NoError(t, err)
			if added {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
	var s *Store
	assert.NoError(t, s.Close())
}
