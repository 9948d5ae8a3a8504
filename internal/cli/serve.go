package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docparse/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document pipeline over gRPC",
	Long: `Starts docparse.v1.DocumentService with Process, Classify and Extract.

The standard gRPC health service and server reflection are registered.
SIGINT or SIGTERM drains in-flight calls before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "gRPC listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := server.NewDocumentService(a.proc, a.classifier, a.extractor, !a.cfg.LLM.Disabled, a.logger)
	gs, hs := server.New(svc, a.logger)
	return server.Serve(ctx, a.cfg.Server.GRPCAddr, gs, hs, a.logger)
}
