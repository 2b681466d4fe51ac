// Command voiceclient drives a streaming voice server.
//
// Usage:
//
//	voiceclient [flags] <command>
//
// Commands:
//
//	serve   - run the HTTP control API and the snapshot stream
//	stream  - connect, stream an audio file, and export the message log
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
