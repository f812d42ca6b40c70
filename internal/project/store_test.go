package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreCreateGetList(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	m, err := s.Create("alpha", "")
	require.NoError(t, err)
	require.Equal(t, "alpha", m.Name)
	require.Equal(t, DefaultRunCommand, m.RunCommand)
	require.Equal(t, StatusStopped, m.Status)
	require.Equal(t, filepath.Join(root, "alpha"), m.Path)

	info, err := os.Stat(m.Path)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	_, err = s.Create("alpha", "")
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.Create("bad name", "")
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Create("beta", "sleep 60")
	require.NoError(t, err)

	require.Equal(t, []string{"alpha", "beta"}, s.List())
	require.True(t, s.Exists("beta"))
	require.False(t, s.Exists("gamma"))

	got, err := s.Get("beta")
	require.NoError(t, err)
	require.Equal(t, "sleep 60", got.RunCommand)

	_, err = s.Get("gamma")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreUpdateDelete(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	_, err = s.Create("alpha", "")
	require.NoError(t, err)

	require.NoError(t, s.Update("alpha", func(m *Metadata) {
		m.Status = StatusRunning
		m.PID = 4242
	}))
	got, err := s.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, got.Status)
	require.Equal(t, 4242, got.PID)

	err = s.Update("missing", func(m *Metadata) {})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete("alpha"))
	require.ErrorIs(t, s.Delete("alpha"), ErrNotFound)

	// Delete leaves the project directory alone.
	_, err = os.Stat(filepath.Join(root, "alpha"))
	require.NoError(t, err)
}

func TestStoreSurvivesReload(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	_, err = s.Create("alpha", "sleep 60")
	require.NoError(t, err)
	require.NoError(t, s.Update("alpha", func(m *Metadata) {
		m.Status = StatusRunning
		m.PID = 99
	}))

	s2, err := Open(root)
	require.NoError(t, err)
	got, err := s2.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "sleep 60", got.RunCommand)
	require.Equal(t, StatusRunning, got.Status)
	require.Equal(t, 99, got.PID)
}

func TestStoreOpenEmptyAndCorrupt(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	require.Empty(t, s.List())

	// An empty document is treated as an empty store.
	require.NoError(t, os.WriteFile(filepath.Join(root, "projects.json"), nil, 0o600))
	s, err = Open(root)
	require.NoError(t, err)
	require.Empty(t, s.List())

	require.NoError(t, os.WriteFile(filepath.Join(root, "projects.json"), []byte("{not json"), 0o600))
	_, err = Open(root)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}
