package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI holds flags shared by every command
type CLI struct {
	version    string
	configPath string
	devLog     bool
}

// Execute runs the root command and exits non-zero on error
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand creates the root cobra command
func NewRootCommand(version string) *cobra.Command {
	cli := &CLI{version: version}

	root := &cobra.Command{
		Use:           "model-mirror",
		Short:         "Mirror Sketchfab models into durable storage",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&cli.devLog, "dev", false, "human readable debug logging")

	root.AddCommand(
		newServeCommand(cli),
		newUploadCommand(cli),
		newStatusCommand(cli),
		newConfigCommand(),
	)
	return root
}

func (c *CLI) newLogger(development bool) (*zap.Logger, error) {
	if development || c.devLog {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
