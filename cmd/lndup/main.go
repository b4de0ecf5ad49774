package main

import (
	"fmt"
	"os"

	"github.com/lndup/lndup/cmd"
)

func main() {
	rootCmd := cmd.RootCommand()

	rootCmd.AddCommand(cmd.UpdateCommand())
	rootCmd.AddCommand(cmd.VersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
