package schema

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

type indexSchemaManager struct {
	dataPath        string
	os              string
	testModeEnabled bool
}

// SchemaContext are the parameters which the SchemaManager derive its source of
// truth. When their zero values are provided, a reasonable default will be
// assumed during runtime.
type SchemaContext struct {
	DataPath        string
	OS              string
	TestModeEnabled bool
}

// IndexPathTransform accepts a string path representing the location where
// application data can be stored and returns the location of the data
// directory relative to that path.
func IndexPathTransform(basePath string, testModeEnabled bool) (path string, err error) {
	path, err = homedir.Expand(filepath.Join(basePath, directoryName(testModeEnabled)))
	if err == nil {
		path = filepath.Clean(path)
	}
	return
}

// GenerateTempPath returns a string path representing the location where
// it is okay to store temporary data. No structure or created or deleted as
// part of this operation.
func GenerateTempPath() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return filepath.Join(os.TempDir(), fmt.Sprintf("index_tempdir_%d", r.Intn(999)))
}

// NewSchemaManager returns a service that handles the data storage directory
// required during runtime.
func NewSchemaManager() (*indexSchemaManager, error) {
	return NewCustomSchemaManager(SchemaContext{})
}

// NewCustomSchemaManager allows a custom SchemaContext to be provided to change
// the data directory and its layout.
func NewCustomSchemaManager(ctx SchemaContext) (*indexSchemaManager, error) {
	if len(ctx.DataPath) == 0 {
		path, err := IndexPathTransform(defaultDataPath(), ctx.TestModeEnabled)
		if err != nil {
			return nil, err
		}
		ctx.DataPath = path
	}
	if len(ctx.OS) == 0 {
		ctx.OS = runtime.GOOS
	}

	return &indexSchemaManager{
		dataPath:        ctx.DataPath,
		os:              ctx.OS,
		testModeEnabled: ctx.TestModeEnabled,
	}, nil
}

func defaultDataPath() (path string) {
	if runtime.GOOS == "darwin" {
		return "~/Library/Application Support"
	}
	return "~"
}

func directoryName(isTestnet bool) (directoryName string) {
	if runtime.GOOS == "linux" {
		directoryName = ".openbazaar-index"
	} else {
		directoryName = "OpenBazaarIndex"
	}

	if isTestnet {
		directoryName += "-testnet"
	}
	return
}

// DataPath returns the expected location of the data storage directory
func (m *indexSchemaManager) DataPath() string { return m.dataPath }

// BlocksPath returns the location of the on disk block store
func (m *indexSchemaManager) BlocksPath() string { return m.DataPathJoin(BlocksDirectory) }

// NamesPath returns the location of the published names datastore
func (m *indexSchemaManager) NamesPath() string { return m.DataPathJoin(NamesDirectory) }

func (m *indexSchemaManager) ConfigPath() string { return m.DataPathJoin(ConfigFile) }

func (m *indexSchemaManager) LogPath() string { return m.DataPathJoin(LogsDirectory, LogFile) }

// DataPathJoin is a helper function which joins the pathArgs to the service's
// dataPath and returns the result
func (m *indexSchemaManager) DataPathJoin(pathArgs ...string) string {
	allPathArgs := append([]string{m.dataPath}, pathArgs...)
	return filepath.Join(allPathArgs...)
}

// IsInitialized reports whether the data directory carries a version file.
func (m *indexSchemaManager) IsInitialized() bool {
	_, err := os.Stat(m.DataPathJoin(VersionFile))
	return err == nil
}

// VerifySchemaVersion will ensure that the schema is currently
// the same as the expectedVersion otherwise returning an error. If the
// schema is exactly the same, nil will be returned.
func (m *indexSchemaManager) VerifySchemaVersion(expectedVersion string) error {
	schemaVersion, err := os.ReadFile(m.DataPathJoin(VersionFile))
	if err != nil {
		return fmt.Errorf("accessing schema version: %s", err.Error())
	}
	if strings.TrimSpace(string(schemaVersion)) != expectedVersion {
		return fmt.Errorf("schema does not match expected version %s", expectedVersion)
	}
	return nil
}

// WriteSchemaVersion records version in the data directory.
func (m *indexSchemaManager) WriteSchemaVersion(version string) error {
	return os.WriteFile(m.DataPathJoin(VersionFile), []byte(version), os.ModePerm)
}

// BuildSchemaDirectories creates the underlying directory structure required during runtime
func (m *indexSchemaManager) BuildSchemaDirectories() error {
	for _, dir := range []string{BlocksDirectory, NamesDirectory, LogsDirectory} {
		if err := os.MkdirAll(m.DataPathJoin(dir), os.ModePerm); err != nil {
			return err
		}
	}
	return nil
}

// DestroySchemaDirectories removes all schema files and folders permitted by the runtime
func (m *indexSchemaManager) DestroySchemaDirectories() {
	os.RemoveAll(m.dataPath)
}
