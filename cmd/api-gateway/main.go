package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Document Access API
// @version 1.0.0
// @description Access requests for archived theses: submission, review and fulfilment.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "docaccess",
		Short:         "Document access request service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), maintenanceCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
