package main

import (
	"fmt"
	"io"
	"os"
)

var Version = "dev"

const usage = `usage: catalog <command> [flags] <base>

commands:
  build      scan the assets and write the catalog report as JSON
  print      write a human readable summary
  reconcile  reproject the catalog into -target and write the report
  export     write the readable assets as a GeoJSON or FlatGeobuf layer
  publish    build the report and send it to the configured Kafka topic
  version    print the version

run "catalog <command> -h" for the flags of a command`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "build", "print", "reconcile", "export", "publish":
		if err := runCommand(cmd, rest, stdout, stderr); err != nil {
			_, _ = fmt.Fprintf(stderr, "catalog %s: %v\n", cmd, err)
			return exitCode(err)
		}
		return 0
	case "version":
		_, _ = fmt.Fprintln(stdout, Version)
		return 0
	case "-h", "-help", "--help", "help":
		_, _ = fmt.Fprintln(stdout, usage)
		return 0
	}
	_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s\n", cmd, usage)
	return 2
}
