// Package main provides the heristone binary: the installment tracker CLI
// and its HTTP API server.
package main

import (
	"context"
	"fmt"
	"os"

	"heristone/internal/cli"
)

const (
	Version = "0.3.0"
	appName = "heristone"
)

// BuildTime is set with -ldflags at release time.
var BuildTime = "dev"

func main() {
	cli.LoadEnvFile()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
