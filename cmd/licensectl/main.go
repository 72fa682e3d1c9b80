package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-license-orderflow/internal/aws"
	"github.com/imrishuroy/go-license-orderflow/internal/config"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/storage"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "licensectl",
		Short:         "Operate the license order service: schema, catalog and webhook tooling",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file (env LICENSE_* overrides it)")

	load := func() (config.Config, error) {
		return config.Read(configFile)
	}

	root.AddCommand(migrateCmd(load))
	root.AddCommand(catalogCmd(load))
	root.AddCommand(webhookCmd(load))
	return root
}

type loader func() (config.Config, error)

// openStorage opens the configured backend. AWS clients are only built for DynamoDB.
func openStorage(ctx context.Context, cfg config.Config) (*storage.Backends, error) {
	log := logging.Init("licensectl", cfg.App.LogFile)

	var dynamo aws.DynamoDBScanAPI
	if cfg.Store.Backend == storage.BackendDynamoDB {
		clients, err := aws.NewAWSClients(ctx, aws.Options{Region: cfg.AWS.Region, EndpointOverride: cfg.AWS.Endpoint})
		if err != nil {
			return nil, err
		}
		dynamo = clients.DynamoDB
	}
	return storage.Open(ctx, cfg, dynamo, log)
}
