// Package main provides the QueryLens command-line interface.
package main

import (
	"os"

	"github.com/querylens/querylens/internal/cli"

	// Register the execution adapters.
	_ "github.com/querylens/querylens/pkg/adapters/duckdb"
	_ "github.com/querylens/querylens/pkg/adapters/postgres"
	_ "github.com/querylens/querylens/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
