package filesystem

import (
	"testing"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemService(t *testing.T, paths ...string) *Service {
	t.Helper()
	afs := afero.NewMemMapFs()
	for _, p := range paths {
		require.NoError(t, afs.MkdirAll(p, 0755))
	}
	return NewService(afs)
}

func TestStatNotFound(t *testing.T) {
	svc := newMemService(t)

	_, err := svc.Stat("/media/movies/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcodes.NotFound("Path")))
}

func TestReadDir(t *testing.T) {
	svc := newMemService(t, "/media/movies/Heat", "/media/movies/Alien")
	require.NoError(t, afero.WriteFile(svc.fs, "/media/movies/notes.txt", []byte("x"), 0644))

	infos, err := svc.ReadDir("/media/movies")
	require.NoError(t, err)
	require.Len(t, infos, 3)

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "Heat")
	assert.Contains(t, names, "Alien")
	assert.Contains(t, names, "notes.txt")
}

func TestReadDirNotFound(t *testing.T) {
	svc := newMemService(t)

	_, err := svc.ReadDir("/nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcodes.NotFound("Path")))
}

func TestInfoFlags(t *testing.T) {
	tests := []struct {
		name        string
		publishable bool
	}{
		{name: "Heat (1995)", publishable: true},
		{name: ".hidden", publishable: false},
		{name: "Thumbs.db", publishable: false},
		{name: "desktop.ini", publishable: false},
		{name: "@eaDir", publishable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &Info{Name: tt.name}
			assert.Equal(t, tt.publishable, info.Publishable())
		})
	}
}

func TestResolveShortcutPassthrough(t *testing.T) {
	svc := newMemService(t, "/media/movies")

	// MemMapFs has no symlinks; the path comes back unchanged.
	resolved, err := svc.ResolveShortcut("/media/movies")
	require.NoError(t, err)
	assert.Equal(t, "/media/movies", resolved)
}

func TestExistsAndDelete(t *testing.T) {
	svc := newMemService(t, "/media/movies/Heat")

	assert.True(t, svc.Exists("/media/movies/Heat"))
	require.NoError(t, svc.Delete("/media/movies/Heat"))
	assert.False(t, svc.Exists("/media/movies/Heat"))
}
