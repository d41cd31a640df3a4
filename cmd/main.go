// nibblebilld is the prepaid call-billing daemon.
//
// It meters active calls against a Redis ledger, reacts to balance
// thresholds, and exposes the management HTTP surface (events, commands,
// health, metrics, dashboard, event stream).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	// Best-effort .env so local deployments can keep the ledger URL out of
	// the config file.
	_ = godotenv.Load()

	var (
		configFlag string
		debugFlag  bool
		portFlag   int
	)

	args := os.Args[1:]
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-h", "--help":
			printHelp()
			return
		case "-v", "--version":
			fmt.Println("nibblebilld " + version)
			return
		case "-c", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --config requires a value")
				os.Exit(1)
			}
			configFlag = args[i+1]
			i += 2
		case "-d", "--debug":
			debugFlag = true
			i++
		case "-p", "--port":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --port requires a value")
				os.Exit(1)
			}
			port, err := strconv.Atoi(args[i+1])
			if err != nil || port < 1 || port > 65535 {
				fmt.Fprintf(os.Stderr, "Error: bad port %q\n", args[i+1])
				os.Exit(1)
			}
			portFlag = port
			i += 2
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown flag %q\n\n", args[i])
			printHelp()
			os.Exit(1)
		}
	}

	if err := runBilld(configFlag, debugFlag, portFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`nibblebilld - real-time prepaid call billing

Usage: nibblebilld [options]

Options:
  -c, --config <file>   YAML config file (defaults apply without one)
  -p, --port <port>     Override the management server port
  -d, --debug           Debug logging
  -v, --version         Print version
  -h, --help            This help
`)
}
