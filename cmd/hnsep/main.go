// hnsep separates audio files into harmonic and noise stems.
//
// Usage:
//
//	hnsep separate -m hnsep.onnx -i song.wav -o out/
//	hnsep models
package main

import (
	"fmt"
	"os"

	"github.com/obiente/hnsep/cmd/hnsep/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
