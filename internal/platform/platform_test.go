package platform

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkDir_EnvOverride(t *testing.T) {
	t.Setenv("WORK_DIR", "/srv/jeje")
	assert.Equal(t, "/srv/jeje", DefaultWorkDir())
	assert.Equal(t, filepath.Join("/srv/jeje", "jejecipher.db"), DataPath("jejecipher.db"))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
}

func TestPortFree(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port
	assert.False(t, PortFree(port))
}
