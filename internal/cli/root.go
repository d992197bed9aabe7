package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X quizbowl-practice/internal/cli.Version=...".
var Version = "dev"

// rootOptions are the flags shared by every subcommand. PORT and CONFIG_PATH
// seed the defaults so containers can configure the binary without flags.
type rootOptions struct {
	port       string
	configPath string
}

func defaultRootOptions() rootOptions {
	opts := rootOptions{
		port:       os.Getenv("PORT"),
		configPath: os.Getenv("CONFIG_PATH"),
	}
	if opts.configPath == "" {
		opts.configPath = "config/config.yaml"
	}
	return opts
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := defaultRootOptions()

	cmd := &cobra.Command{
		Use:          "quizbowl-practice",
		Short:        "Quizbowl practice server: read questions aloud, buzz, answer",
		Version:      Version,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.port, "port", opts.port, "port to listen on (defaults to server.port, then 8080)")
	flags.StringVar(&opts.configPath, "config", opts.configPath, "path to YAML config")

	cmd.AddCommand(
		NewStartCmd(&opts.configPath, &opts.port),
		NewMigrateCmd(&opts.configPath),
		NewImportCmd(&opts.configPath),
	)
	return cmd
}
