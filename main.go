package main

import (
	"fmt"
	"os"

	"github.com/openrecovery/blkmap/api"
	"github.com/openrecovery/blkmap/client"
)

const (
	// version of blkmap
	VERSION = "0.2.0"
)

func cleanup() {
	if r := recover(); r != nil {
		api.ResponseLogAndError(r)
		os.Exit(1)
	}
}

func main() {
	defer cleanup()

	cli := client.NewCli(VERSION)
	err := cli.Run(os.Args)
	if err != nil {
		panic(fmt.Errorf("Error when executing command: %v", err))
	}
}
