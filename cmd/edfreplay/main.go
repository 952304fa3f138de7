package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/edfreplay/internal/version"
)

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	os.Exit(dispatch(flag.Arg(0), flag.Args()[1:], os.Stdout, os.Stderr))
}

// dispatch runs one subcommand and returns the process exit status.
func dispatch(command string, args []string, stdout, stderr io.Writer) int {
	switch command {
	case "stream":
		return handleStream(args, stderr)
	case "inspect":
		return handleInspect(args, defaultEnv(), stdout, stderr)
	case "preview":
		return handlePreview(args, defaultEnv(), stderr)
	case "synth":
		return handleSynth(args, defaultEnv(), stderr)
	case "sessions":
		return handleSessions(args, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `edfreplay - stream EDF recordings over a serial link in real time

Usage: edfreplay <command> [options]

Commands:
  stream     Replay a recording over a serial port at its sampling rate
  inspect    Print the header, channel table and per-channel statistics
  preview    Render the first records of the streamed channels to PNG or HTML
  synth      Write a synthetic multi-channel recording for bench testing
  sessions   List or show journaled streaming sessions
  version    Show edfreplay version
  help       Show this help message

Run 'edfreplay <command> -h' for the options of a command.
`)
}
