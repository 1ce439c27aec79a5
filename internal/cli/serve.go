package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/image-pde/internal/server"
)

func (c *CLI) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the filters as MCP tools on stdin/stdout",
		Long: `Run an MCP (Model Context Protocol) server over stdio. Configure it in an
MCP client as a command; stdout carries the protocol and logs go to stderr.

The log level comes from IMAGE_PDE_LOG_LEVEL (debug, info, warn, error) unless
--verbose is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			logger := server.NewLogger(os.Getenv("IMAGE_PDE_LOG_LEVEL"))
			if c.verbose {
				logger.SetLevel(log.DebugLevel)
			}
			server.Version = version

			srv := server.NewWithConfig(cfg, logger)
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
