package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMissingReadsEmpty(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nope.json"), nil)
	b, err := f.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestFileWriteRead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "streams.json")
	f := NewFile(path, nil)

	require.NoError(t, f.Write(ctx, []byte(`[1]`)))
	require.NoError(t, f.Write(ctx, []byte(`[2]`)))

	b, err := f.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[2]`, string(b))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}
