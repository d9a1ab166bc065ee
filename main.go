package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/OpenBazaar/openbazaar-index/cmd"
	"github.com/OpenBazaar/openbazaar-index/core"
	"github.com/jessevdk/go-flags"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("main")

type Opts struct {
	Version bool `long:"version" description:"Print the version number and exit"`
}

var opts Opts

var parser = flags.NewParser(&opts, flags.Default)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		for sig := range c {
			log.Noticef("Received %s", sig)
			log.Info("Index shutting down...")
			if core.Node != nil {
				if err := core.Node.Close(); err != nil {
					log.Error(err)
				}
			}
			os.Exit(1)
		}
	}()

	parser.AddCommand("init",
		"initialize a new data directory",
		"Initializes the data directory and writes the default config",
		&cmd.Init{})
	parser.AddCommand("config",
		"change the data directory config",
		"Updates the stored config. Index settings apply to indexes created afterwards",
		&cmd.SetConfig{})
	parser.AddCommand("create",
		"create an index",
		"Creates an empty ordered index, or a point index with --point, and publishes it under NAME",
		&cmd.Create{})
	parser.AddCommand("insert",
		"insert entries",
		"Inserts KEY VALUE pairs into the index. Point indexes also take bare CIDs, stored under their digest",
		&cmd.Insert{})
	parser.AddCommand("get",
		"look up a key",
		"Prints the value stored under KEY",
		&cmd.Get{})
	parser.AddCommand("remove",
		"remove keys",
		"Removes every KEY from the index. Absent keys are ignored",
		&cmd.Remove{})
	parser.AddCommand("dump",
		"print the entries of an index",
		"Prints the entries of an ordered index in key order, or of a point index in trie order",
		&cmd.Dump{})
	parser.AddCommand("stat",
		"describe an index",
		"Prints the handle, root, size and shape of an index",
		&cmd.Stat{})
	parser.AddCommand("names",
		"list index names",
		"Lists every locally published index name with its handle",
		&cmd.Names{})
	parser.AddCommand("delete",
		"unpublish an index",
		"Removes NAME. The blocks of the index are kept",
		&cmd.Delete{})

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println("openbazaar-index v" + core.VERSION)
		return
	}
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
