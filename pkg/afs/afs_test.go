package afs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadAllText(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.WriteAllText("/funcs/myfunc/function.json", `{"disabled":false}`))

	got, err := fs.ReadAllText("/funcs/myfunc/function.json")
	require.NoError(t, err)
	assert.Equal(t, `{"disabled":false}`, got)

	exists, err := fs.Exists("/funcs/myfunc/function.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnsureAndDeleteDirectory(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.EnsureDirectory("/funcs/a"))

	ok, err := fs.DirectoryExists("/funcs/a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, fs.WriteAllText("/funcs/a/function.json", "{}"))
	require.NoError(t, fs.DeleteDirectoryContentsSafe("/funcs/a"))

	ok, _ = fs.Exists("/funcs/a/function.json")
	assert.False(t, ok)
	ok, err = fs.DirectoryExists("/funcs/a")
	require.NoError(t, err)
	assert.True(t, ok, "contents delete must leave the directory itself")

	require.NoError(t, fs.DeleteDirectorySafe("/funcs/a"))
	ok, _ = fs.DirectoryExists("/funcs/a")
	assert.False(t, ok)
}

func TestDeleteSafeOnMissingPathIsNotError(t *testing.T) {
	fs := NewMemory()
	assert.NoError(t, fs.DeleteDirectorySafe("/does/not/exist"))
	assert.NoError(t, fs.DeleteFileSafe("/does/not/exist.txt"))
	assert.NoError(t, fs.DeleteDirectoryContentsSafe("/does/not/exist"))
}

func TestGetDirectoriesListsEverySubdirectory(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.EnsureDirectory("/funcs/zeta"))
	require.NoError(t, fs.EnsureDirectory("/funcs/alpha"))
	require.NoError(t, fs.EnsureDirectory("/funcs/mid"))

	dirs, err := fs.GetDirectories("/funcs")
	require.NoError(t, err)
	require.Len(t, dirs, 3)
}

func TestGetFilesTopOnlyExcludesSubdirectories(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.WriteAllText("/funcs/f/function.json", "{}"))
	require.NoError(t, fs.WriteAllText("/funcs/f/run.sh", "echo hi"))
	require.NoError(t, fs.WriteAllText("/funcs/f/nested/data.txt", "x"))

	files, err := fs.GetFiles("/funcs/f", "*", true)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGetFilesPattern(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.WriteAllText("/f/run.sh", "x"))
	require.NoError(t, fs.WriteAllText("/f/run.exe", "x"))
	require.NoError(t, fs.WriteAllText("/f/index.js", "x"))

	files, err := fs.GetFiles("/f", "run.*", true)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
