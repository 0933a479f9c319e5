// Command sidekick is the chat assistant backend CLI.
package main

import (
	"fmt"
	"os"

	"github.com/sidekick-dev/sidekick/cmd/sidekick/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
