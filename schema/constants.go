package schema

import "errors"

const (
	// RepoVersion is written to the repover file of every data directory.
	RepoVersion = "1"

	// Data directory layout
	BlocksDirectory = "blocks"
	NamesDirectory  = "names"
	LogsDirectory   = "logs"
	ConfigFile      = "config"
	VersionFile     = "repover"
	LogFile         = "index.log"
	// End data directory layout

	// Configuration defaults
	BlockstoreTypePebble = "pebble"
	BlockstoreTypeMemory = "memory"
	DefaultCacheSize     = 4096
	DefaultConcurrency   = 32
	// End configuration defaults
)

var (
	// Errors
	ErrorUnknownBlockstore = errors.New("unknown blockstore type")
	// End Errors
)
