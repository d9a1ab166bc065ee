package cmd

import (
	"fmt"

	"github.com/OpenBazaar/openbazaar-index/repo"
)

type Init struct {
	RepoOptions
	Force bool `short:"f" long:"force" description:"rewrite the config of an existing data directory"`
}

func (x *Init) Execute(args []string) error {
	repoPath, err := x.repoPath()
	if err != nil {
		return err
	}
	x.setupLogging(repoPath)
	if err := repo.DoInit(repoPath, x.Force); err != nil {
		return err
	}
	fmt.Printf("Index data directory initialized at %s\n", repoPath)
	return nil
}
