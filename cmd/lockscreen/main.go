package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.Args[1:]).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lockscreen: %v\n", err)
		os.Exit(1)
	}
}
