package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `sites:
  - name: Shrine of the Báb
    city: Haifa
    address: Mount Carmel
    image: bab.jpg
    quote: "The Spot round which the Concourse on high circle in adoration."
    reference: God Passes By
  - name: Shrine of Bahá'u'lláh
    city: Acre
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	s, ok := c.Lookup("Shrine of the Báb")
	require.True(t, ok)
	assert.Equal(t, "Haifa", s.City)
	assert.Equal(t, "God Passes By", s.Reference)

	_, ok = c.Lookup("shrine of the báb")
	assert.False(t, ok)

	assert.Equal(t, []string{"Shrine of Bahá'u'lláh", "Shrine of the Báb"}, c.Names())
	assert.Equal(t, "Shrine of the Báb", c.Sites()[0].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "duplicate", input: "sites:\n  - name: A\n  - name: A\n", wantErr: ErrDuplicateSite},
		{name: "unnamed", input: "sites:\n  - city: Haifa\n", wantErr: ErrUnnamedSite},
		{name: "unknown field", input: "sites:\n  - name: A\n    colour: red\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	c, err = Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}
