package main

import (
	"os"

	"github.com/adishahh/indian-market-ml-platform/cmd/quant/commands"
)

// main is the entry point for the quant CLI
// ⭐ single CLI entry point: go run ./cmd/quant [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
