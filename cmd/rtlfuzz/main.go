package main

import (
	"fmt"
	"os"

	"github.com/roach88/rtlfuzz/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rtlfuzz: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
