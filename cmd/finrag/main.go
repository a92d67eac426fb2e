package main

import (
	"github.com/joho/godotenv"

	"finrag/internal/cli"
)

func main() {
	// API keys come from the environment; a local .env is a convenience,
	// its absence is not an error.
	_ = godotenv.Load()

	cli.Execute()
}
