// Package main is the entry point for the Mailjet relay.
package main

import (
	"os"

	"github.com/shineum/mailjet-relay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
