package schema

import (
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSchemaManagerSetsReasonableDefaults(t *testing.T) {
	subject, err := NewSchemaManager()
	require.NoError(t, err)
	require.False(t, subject.testModeEnabled)
	require.Equal(t, runtime.GOOS, subject.os)

	expectedDataPath := "/foobarbaz"
	subject, err = NewCustomSchemaManager(SchemaContext{
		DataPath:        expectedDataPath,
		TestModeEnabled: true,
	})
	require.NoError(t, err)
	require.True(t, subject.testModeEnabled)
	require.True(t, strings.HasPrefix(subject.DataPath(), expectedDataPath))
}

func TestSchemaManagerPaths(t *testing.T) {
	subject, err := NewCustomSchemaManager(SchemaContext{DataPath: "/root"})
	require.NoError(t, err)
	require.Equal(t, "/root/blocks", subject.BlocksPath())
	require.Equal(t, "/root/names", subject.NamesPath())
	require.Equal(t, "/root/config", subject.ConfigPath())
	require.Equal(t, "/root/logs/index.log", subject.LogPath())
}

func TestBuildSchemaDirectories(t *testing.T) {
	subject, err := NewCustomSchemaManager(SchemaContext{DataPath: GenerateTempPath()})
	require.NoError(t, err)
	defer subject.DestroySchemaDirectories()

	require.NoError(t, subject.BuildSchemaDirectories())
	for _, dir := range []string{subject.BlocksPath(), subject.NamesPath(), subject.DataPathJoin(LogsDirectory)} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	require.False(t, subject.IsInitialized())
	require.Error(t, subject.VerifySchemaVersion(RepoVersion))
	require.NoError(t, subject.WriteSchemaVersion(RepoVersion))
	require.True(t, subject.IsInitialized())
	require.NoError(t, subject.VerifySchemaVersion(RepoVersion))
	require.Error(t, subject.VerifySchemaVersion("0"))
}

func TestIndexPathTransform(t *testing.T) {
	path, err := IndexPathTransform("/base", true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, "/base/"))
	require.True(t, strings.HasSuffix(path, "-testnet"))
}
