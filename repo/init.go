package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/OpenBazaar/openbazaar-index/schema"
	"github.com/cockroachdb/errors"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("repo")

// DoInit lays out the data directory at repoRoot and writes the default
// config. An initialized directory is only rewritten when force is set.
func DoInit(repoRoot string, force bool) error {
	nodeSchema, err := schema.NewCustomSchemaManager(schema.SchemaContext{
		DataPath: repoRoot,
	})
	if err != nil {
		return err
	}
	if nodeSchema.IsInitialized() && !force {
		return ErrRepoExists
	}
	if err := checkWriteable(repoRoot); err != nil {
		return err
	}
	if err := nodeSchema.BuildSchemaDirectories(); err != nil {
		return err
	}

	log.Infof("Initializing index data directory at %s", repoRoot)
	if err := WriteConfig(repoRoot, schema.DefaultConfig()); err != nil {
		return err
	}
	return nodeSchema.WriteSchemaVersion(schema.RepoVersion)
}

// WriteConfig stores cfg in the data directory.
func WriteConfig(repoRoot string, cfg *schema.Config) error {
	out, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path.Join(repoRoot, schema.ConfigFile), out, 0600)
}

// LoadConfig reads the config of an initialized data directory.
func LoadConfig(repoRoot string) (*schema.Config, error) {
	nodeSchema, err := schema.NewCustomSchemaManager(schema.SchemaContext{
		DataPath: repoRoot,
	})
	if err != nil {
		return nil, err
	}
	if !nodeSchema.IsInitialized() {
		return nil, errors.Wrapf(ErrRepoNotInitialized, "at %s", repoRoot)
	}
	if err := nodeSchema.VerifySchemaVersion(schema.RepoVersion); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(nodeSchema.ConfigPath())
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return schema.GetConfig(raw)
}

func checkWriteable(dir string) error {
	_, err := os.Stat(dir)
	if err == nil {
		// Directory exists, make sure we can write to it
		testfile := path.Join(dir, "test")
		fi, err := os.Create(testfile)
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%s is not writeable by the current user", dir)
			}
			return fmt.Errorf("unexpected error while checking writeablility of repo root: %s", err)
		}
		fi.Close()
		return os.Remove(testfile)
	}

	if os.IsNotExist(err) {
		// Directory does not exist, check that we can create it
		return os.MkdirAll(dir, 0775)
	}

	if os.IsPermission(err) {
		return fmt.Errorf("cannot write to %s, incorrect permissions", err)
	}

	return err
}
