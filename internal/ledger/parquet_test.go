package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.parquet")
	records := sampleRecords()

	require.NoError(t, ExportParquet(path, records))

	rows, err := ReadParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "beach.jpg", rows[0].Filename)
	assert.Equal(t, "PA", rows[0].CountryCode)
	assert.Equal(t, []string{"beach", "sea"}, rows[0].Tags)
	assert.Empty(t, rows[0].RemoteAssetID)

	assert.Empty(t, rows[1].Country)
	assert.Equal(t, "doc-1", rows[1].RemoteDocID)
}
