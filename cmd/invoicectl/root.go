package main

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/config"
	"github.com/arnac-io/paygate/pkg/invoicestore"
)

// env holds what every command needs, it is filled by the root command before a subcommand runs.
type env struct {
	cfg     config.Config
	store   invoicestore.Store
	closeFn func() error
}

func newRootCmd() *cobra.Command {
	var (
		e      env
		driver string
		dsn    string
	)
	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Manage paygate invoices",
		Long:          "invoicectl creates and inspects invoices directly in the paygate database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return errors.Wrap(err, "config")
			}
			if driver == "" {
				driver = cfg.Store.Driver
			}
			if dsn == "" {
				dsn = cfg.Store.DatabaseURL
			}
			if driver == invoicestore.DriverMemory {
				return errors.New("invoicectl needs a database, set --driver and --dsn")
			}
			store, err := invoicestore.NewSQLStore(zap.NewNop(), driver, dsn)
			if err != nil {
				return err
			}
			e = env{cfg: cfg, store: store, closeFn: store.Close}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.closeFn == nil {
				return nil
			}
			return e.closeFn()
		},
	}
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "Database driver, sqlite3 or postgres (default $DB_DRIVER)")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database connection string (default $DATABASE_URL)")

	cmd.AddCommand(newCreateCmd(&e))
	cmd.AddCommand(newStatusCmd(&e))
	cmd.AddCommand(newListCmd(&e))
	return cmd
}
