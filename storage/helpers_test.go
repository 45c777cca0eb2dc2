package storage

import (
	"encoding/gob"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func readStored(t *testing.T, path string) storedBundle {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var s storedBundle
	require.NoError(t, gob.NewDecoder(f).Decode(&s))
	return s
}

func writeStored(t *testing.T, path string, s storedBundle) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gob.NewEncoder(f).Encode(&s))
}
