package main

import (
	"fmt"
	"os"

	"github.com/snapshelf/syncstore/internal/hubcli"
)

func main() {
	if err := hubcli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "syncstore-hub:", err)
		os.Exit(1)
	}
}
