package payload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmpty(t *testing.T) {
	set, err := New(nil)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, ErrNoPaths)
}

func TestEncodings(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		uri   string
		text  string
	}{
		{
			name:  "single",
			paths: []string{"/tmp/a.txt"},
			uri:   "file:///tmp/a.txt\r\n",
			text:  "file:///tmp/a.txt",
		},
		{
			name:  "two",
			paths: []string{"/tmp/a.txt", "/tmp/b.txt"},
			uri:   "file:///tmp/a.txt\r\nfile:///tmp/b.txt\r\n",
			text:  "file:///tmp/a.txt file:///tmp/b.txt",
		},
		{
			name:  "no escaping",
			paths: []string{"/tmp/with space/ü.txt", "/tmp/100%.txt"},
			uri:   "file:///tmp/with space/ü.txt\r\nfile:///tmp/100%.txt\r\n",
			text:  "file:///tmp/with space/ü.txt file:///tmp/100%.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := New(tt.paths)
			require.NoError(t, err)

			assert.Equal(t, tt.uri, set.URIList().String())
			assert.Equal(t, tt.text, set.Text().String())

			uriLen, textLen := 0, len(tt.paths)-1
			for _, p := range tt.paths {
				uriLen += len(p) + 9
				textLen += len(p) + 7
			}
			assert.Equal(t, uriLen, set.URIList().Len())
			assert.Equal(t, textLen, set.Text().Len())

			for _, enc := range []Encoding{set.URIList(), set.Text()} {
				term := enc.buf
				require.Len(t, term, enc.Len()+1)
				assert.Equal(t, byte(0), term[len(term)-1])
				assert.Equal(t, 1, bytes.Count(term, []byte{0}))
			}
		})
	}
}

func TestNewPreservesOrderAndDropsDuplicates(t *testing.T) {
	set, err := New([]string{"/b", "/a", "/b", "/c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/b", "/a", "/c"}, set.Paths())
	assert.Equal(t, 3, set.Count())
	assert.Equal(t, "file:///b file:///a file:///c", set.Text().String())
}

func TestPathsReturnsCopy(t *testing.T) {
	set, err := New([]string{"/a"})
	require.NoError(t, err)

	paths := set.Paths()
	paths[0] = "/mutated"
	assert.Equal(t, []string{"/a"}, set.Paths())
}

func TestResolve(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(file, link))

	t.Run("absolute and symlinks", func(t *testing.T) {
		got, err := Resolve([]string{file, link}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{file, file}, got)
	})

	t.Run("relative", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() { _ = os.Chdir(wd) })
		got, err := Resolve([]string{"a.txt"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{file}, got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Resolve([]string{file, filepath.Join(dir, "missing")}, nil)
		require.Error(t, err)

		var pathErr *PathError
		require.ErrorAs(t, err, &pathErr)
		assert.True(t, strings.HasSuffix(pathErr.Arg, "missing"))
		assert.Contains(t, err.Error(), "invalid file path")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Resolve(nil, nil)
		assert.ErrorIs(t, err, ErrNoPaths)
	})
}

func TestWatcherReportsRemoval(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	offered := filepath.Join(dir, "offered.txt")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(offered, nil, 0o644))
	require.NoError(t, os.WriteFile(other, nil, 0o644))

	set, err := New([]string{offered})
	require.NoError(t, err)

	w, err := NewWatcher(set, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Remove(other))
	require.NoError(t, os.Remove(offered))

	select {
	case ev := <-w.Events():
		assert.Equal(t, offered, ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for vanished event")
	}

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
