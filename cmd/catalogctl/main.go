// Command catalogctl runs maintenance tasks against the catalog database:
// schema migrations, CSV import/export and admin token issuance.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"ingredient-catalog-service/internal/auth"
	"ingredient-catalog-service/internal/config"
	"ingredient-catalog-service/internal/csvio"
	"ingredient-catalog-service/internal/domain"
	"ingredient-catalog-service/internal/store"
)

// productTransfer is the part of the product store used by import/export.
type productTransfer interface {
	UpsertProducts(ctx context.Context, partition domain.Partition, products []domain.Product) (int, error)
	AllProducts(ctx context.Context, partition domain.Partition) ([]domain.Product, error)
}

type cli struct {
	// openProducts connects to the product store; the returned func releases it.
	openProducts func(ctx context.Context) (productTransfer, func(), error)
	migrator     func() (*store.Migrator, error)
}

func defaultCLI() *cli {
	return &cli{
		openProducts: func(ctx context.Context) (productTransfer, func(), error) {
			pg, err := loadPostgres()
			if err != nil {
				return nil, nil, err
			}
			db, err := store.Open(ctx, pg.DSN(), 2)
			if err != nil {
				return nil, nil, err
			}
			s := store.NewPostgresStore(db)
			return s, func() { _ = s.Close() }, nil
		},
		migrator: func() (*store.Migrator, error) {
			pg, err := loadPostgres()
			if err != nil {
				return nil, err
			}
			return store.NewMigrator(pg.DSN())
		},
	}
}

func loadPostgres() (*config.PostgresConfig, error) {
	var pg config.PostgresConfig
	if err := envconfig.Process("", &pg); err != nil {
		return nil, fmt.Errorf("failed to process postgres configuration: %w", err)
	}
	return &pg, nil
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Maintenance tool for the ingredient catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(c.newMigrateCmd(), c.newImportCmd(), c.newExportCmd(), newTokenCmd())
	return root
}

func (c *cli) newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigrator(func(m *store.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd.OutOrStdout(), m)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return c.withMigrator(func(m *store.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd.OutOrStdout(), m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigrator(func(m *store.Migrator) error {
				return printVersion(cmd.OutOrStdout(), m)
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func (c *cli) withMigrator(fn func(*store.Migrator) error) error {
	m, err := c.migrator()
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printVersion(w io.Writer, m *store.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(w, "schema version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(w, "schema version %d\n", version)
	return nil
}

func (c *cli) newImportCmd() *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "import <partition> <file.csv>",
		Short: "Upsert the products of a CSV file into a partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, err := domain.ParsePartition(args[0])
			if err != nil {
				return err
			}
			var opts csvio.ReadOptions
			switch encoding {
			case "utf-8":
			case "windows-1252":
				opts.Windows1252 = true
			default:
				return fmt.Errorf("unsupported encoding %q", encoding)
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			parsed, err := csvio.Read(f, opts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			products, release, err := c.openProducts(ctx)
			if err != nil {
				return err
			}
			defer release()

			imported, err := products.UpsertProducts(ctx, partition, parsed.Products)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d products into %s\n", imported, partition)
			for _, rowErr := range parsed.Errors {
				fmt.Fprintf(out, "rejected %s\n", rowErr.Error())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "file encoding: utf-8 or windows-1252")
	return cmd
}

func (c *cli) newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <partition>",
		Short: "Write every product of a partition as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, err := domain.ParsePartition(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			products, release, err := c.openProducts(ctx)
			if err != nil {
				return err
			}
			defer release()

			all, err := products.AllProducts(ctx, partition)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return csvio.Write(w, all)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file, - for stdout")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var authCfg config.AuthConfig
			if err := envconfig.Process("", &authCfg); err != nil {
				return fmt.Errorf("failed to process auth configuration: %w", err)
			}
			token, err := auth.NewVerifier(authCfg.JWTSecret, authCfg.AdminRole).Issue(email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "address recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func main() {
	_ = godotenv.Load()

	if err := defaultCLI().newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
