package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/rpcprobe/pkg/scenario"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	path := filepath.Join(t.TempDir(), "sub", "reports.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestStore(t *testing.T) {
	s, path := newStore(t)

	runs, err := s.List(0)
	require.NoError(t, err)
	require.Empty(t, runs)

	start := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	var saved []*Run
	for i := 0; i < 3; i++ {
		r := NewRun(start.Add(time.Duration(i)*time.Minute), "http://127.0.0.1:8101", "http", i == 2, []scenario.Result{
			{Name: "peer-count", Passed: true, Duration: time.Second},
			{Name: "transfer-balance", Passed: i != 1, Error: "boom", Duration: 2 * time.Second},
		})
		require.NoError(t, s.Save(r))
		saved = append(saved, r)
	}
	require.True(t, saved[0].Passed())
	require.False(t, saved[1].Passed())

	runs, err = s.List(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, saved[2], runs[0])
	require.Equal(t, saved[1], runs[1])

	got, err := s.Get(saved[0].ID)
	require.NoError(t, err)
	require.Equal(t, saved[0], got)

	_, err = s.Get(uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	// Reports survive reopening.
	require.NoError(t, s.Close())
	s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	runs, err = s.List(-1)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, saved[0].ID, runs[2].ID)
}
