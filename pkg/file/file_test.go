package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}

func TestYamlRoundTrip(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, fs.WriteYamlFile(path, sample{Name: "agent", Timeout: 3 * time.Second}))

	exists, err := fs.IsFileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	var got sample
	require.NoError(t, fs.ReadYamlFile(path, &got))
	assert.Equal(t, sample{Name: "agent", Timeout: 3 * time.Second}, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadYamlFile_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\ntimout: 1s\n"), 0o644))

	var got sample
	err := NewFileService().ReadYamlFile(path, &got)
	assert.ErrorContains(t, err, "timout")
}

func TestReadYamlFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var got sample
	assert.NoError(t, NewFileService().ReadYamlFile(path, &got))
	assert.Equal(t, sample{}, got)
}

func TestIsFileExists_Missing(t *testing.T) {
	exists, err := NewFileService().IsFileExists(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestReadFileRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("pem"), 0o644))

	data, err := NewFileService().ReadFileRaw(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("pem"), data)
}
