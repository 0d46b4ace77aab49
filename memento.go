package main

import (
	"github.com/joho/godotenv"

	cli "github.com/mementolabs/memento/cmd/memento"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cli.Execute()
}
