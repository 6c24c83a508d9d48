package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAreOrderedAndEmbedded(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_serials.sql", names[0])

	body, err := migrationFiles.ReadFile(names[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "UNIQUE (line, reference)")
	assert.Contains(t, string(body), "UNIQUE (line, value)")

	require.Len(t, names, 2)
	assert.Equal(t, "0002_serial_number_unique.sql", names[1])
	body, err = migrationFiles.ReadFile(names[1])
	require.NoError(t, err)
	assert.Contains(t, string(body), "serial_records_number_key ON serial_records (number)")
}
