package cmd

import (
	"fmt"

	"github.com/lndup/lndup/pkg/runtime"

	"github.com/spf13/cobra"
)

func VersionCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Long:  `Print version info`,
		Example: `  lndup version
  lndup version --help`,
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		fmt.Printf("lndup version: %s commit: %s built at: %s\n", runtime.Version, runtime.GitCommit, runtime.Timestamp)
		return nil
	}

	return command
}
