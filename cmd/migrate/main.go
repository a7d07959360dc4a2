// Package main provides a CLI for applying database migrations.
// Usage: migrate up
//
//	migrate down
//	migrate status
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"

	"stockflow/internal/config"
)

func main() {
	envFile := flag.String("env", "", "path to .env file")
	dir := flag.String("dir", "db/migrations", "migrations directory")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	switch command {
	case "up", "down", "status", "redo":
	case "help":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.DatabaseURL == "" {
		fmt.Println("Error: DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	fmt.Printf("Running goose %s (%s)...\n", command, *dir)
	cmd := exec.Command("goose", "-dir", *dir, "postgres", cfg.Storage.DatabaseURL, command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Printf("  ✗ Failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("  ✓ Done")
}

func printUsage() {
	fmt.Println(`stockflow migration CLI

Usage:
  migrate [-env file] [-dir db/migrations] <command>

Commands:
  up       Apply all pending migrations
  down     Roll back the last migration
  redo     Roll back and re-apply the last migration
  status   Show migration status
  help     Show this help

Environment Variables:
  DATABASE_URL   Connection string for the stockflow database (required)

Requires the goose binary on PATH.`)
}
