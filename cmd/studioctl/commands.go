package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	app "github.com/R3E-Network/studio_layer/internal/app"
	"github.com/R3E-Network/studio_layer/internal/app/domain/inventory"
	consentsvc "github.com/R3E-Network/studio_layer/internal/app/services/consent"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/internal/platform/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres schema",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		return nil
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			return err
		}
		return printVersion(cmd)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default one step)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer")
			}
			steps = n
		}
		if err := migrations.Down(cfg.DatabaseURL, steps); err != nil {
			return err
		}
		return printVersion(cmd)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd)
	},
}

func printVersion(cmd *cobra.Command) error {
	v, dirty, err := migrations.Version(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%v)\n", v, dirty)
	return nil
}

var seedDemo bool

var seedCmd = &cobra.Command{
	Use:   "seed [studio...]",
	Short: "Persist the gallery seed pieces, optionally with demo inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application) error {
			studios := args
			if len(studios) == 0 {
				studios = a.Studios.StudioIDs()
			}
			for _, id := range studios {
				if _, ok := a.Studios.Studio(id); !ok {
					return fmt.Errorf("unknown studio %q", id)
				}
				n, err := a.Gallery.Seed(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("seed gallery for %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d gallery pieces added\n", id, n)
				if !seedDemo {
					continue
				}
				added, err := seedInventory(cmd, a, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d inventory items added\n", id, added)
			}
			return nil
		})
	},
}

var demoInventory = []inventory.Item{
	{ItemName: "Tinta negra Dynamic", Quantity: 6, MinStock: 3, Category: "Tintas"},
	{ItemName: "Agujas 3RL", Quantity: 40, MinStock: 20, Category: "Agujas"},
	{ItemName: "Agujas 7M1", Quantity: 12, MinStock: 20, Category: "Agujas"},
	{ItemName: "Papel hectográfico", Quantity: 2, MinStock: 5, Category: "Papelería"},
	{ItemName: "Film protector", Quantity: 8, MinStock: 4, Category: "Aftercare"},
}

// seedInventory adds the demo items missing from the studio's stock.
func seedInventory(cmd *cobra.Command, a *app.Application, studioID string) (int, error) {
	existing, err := a.Inventory.List(cmd.Context(), studioID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, it := range existing {
		have[it.ItemName] = true
	}
	added := 0
	for _, it := range demoInventory {
		if have[it.ItemName] {
			continue
		}
		it.StudioID = studioID
		if _, err := a.Inventory.Add(cmd.Context(), it); err != nil && !errors.Is(err, storage.ErrConflict) {
			return added, err
		}
		added++
	}
	return added, nil
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Flag overdue appointments once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application) error {
			n := a.Sweeper.Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d appointments need confirmation\n", n)
			return nil
		})
	},
}

var lowStockCmd = &cobra.Command{
	Use:   "low-stock",
	Short: "Report items below their minimum stock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.Application) error {
			report := a.LowStock.Report(cmd.Context())
			ids := make([]string, 0, len(report))
			for id := range report {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items low\n", id, report[id])
			}
			return nil
		})
	},
}

var consentTemplateCmd = &cobra.Command{
	Use:   "consent-template <studio>",
	Short: "Print the consent text a studio sends",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		studios, err := config.LoadStudioConfig(cfg.StudioFile)
		if err != nil {
			studios = config.DefaultStudioConfig()
		}
		st, ok := studios.Studio(args[0])
		if !ok {
			return fmt.Errorf("unknown studio %q", args[0])
		}
		text := st.ConsentTemplate
		if text == "" {
			text = consentsvc.DefaultTemplate
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "Also add demo inventory items")
}
