// Command funcptr reports the functions each call site of a Go program may
// invoke.
package main

import (
	"os"

	"github.com/BarrensZeppelin/funcptr/cmd/funcptr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
