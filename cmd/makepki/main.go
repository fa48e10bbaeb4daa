//go:build !test
// +build !test

package main

import (
	"os"

	"github.com/wrouesnel/makepki/internal/entrypoint"
)

func main() {
	err := entrypoint.Entrypoint(os.Args[1:], os.Stdout, os.Stderr, os.Stdin)
	os.Exit(entrypoint.ExitCode(err)) //nolint:gocritic
}
