package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// .env files only fill in variables that are not already set
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "run":
		handleRun(args)
	case "watch":
		handleWatch(args)
	case "urls":
		handleURLs(args)
	case "validate":
		handleValidate(args)
	case "serve":
		handleServe(args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("propwatch - Real estate listing watcher")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  propwatch <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Run every query once and mail new listings")
	fmt.Println("  watch      Run every query periodically")
	fmt.Println("  urls       Print the search URL of every query")
	fmt.Println("  validate   Validate the config file")
	fmt.Println("  serve      Serve the read-only status API")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Run 'propwatch <command> -h' for the flags of a command.")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  PROPWATCH_CONFIG      Path to the config file (default: config.yaml)")
	fmt.Println("  PROPWATCH_STORE_TYPE  Record store type: file, sqlite, postgres (default: file)")
	fmt.Println("  PROPWATCH_STORE_DSN   Record store path or DSN (default: query_results.json)")
	fmt.Println("  PROPWATCH_SELECTORS   Path to a JSON file overriding the page selectors")
	fmt.Println("  PROPWATCH_LOG_LEVEL   Log level: debug, info, warn, error (default: info)")
	fmt.Println("  PROPWATCH_LOG_FORMAT  Log format: json, console (default: json)")
	fmt.Println("  PROPWATCH_INTERVAL    Pause between runs in watch mode (default: 1h)")
	fmt.Println("  PROPWATCH_ADDR        Status API listen address (default: localhost:8082)")
	fmt.Println("  MAIL_FROM_PASSWORD    SMTP password of the sender (required for run and watch)")
	fmt.Println("  ENV_FILE              Env file to load instead of .env.local and .env")
}
