package main

import (
	"fmt"
	"os"

	vmauth "github.com/drand/vmauth/internal/vmauth-cli"
)

func main() {
	app := vmauth.CLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "vmauth: %v\n", err)
		os.Exit(1)
	}
}
