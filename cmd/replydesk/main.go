// Command replydesk runs the reply desk webhook service.
package main

import (
	"fmt"
	"os"

	"github.com/xraph/replydesk/cmd/replydesk/commands"
)

var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
