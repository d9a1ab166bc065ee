package repo

import (
	"github.com/OpenBazaar/openbazaar-index/schema"
)

// SetConfigKey applies fn to the stored config and writes it back.
func SetConfigKey(repoRoot string, fn func(cfg *schema.Config) error) error {
	cfg, err := LoadConfig(repoRoot)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return WriteConfig(repoRoot, cfg)
}
