package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/creamcroissant/panelmirror/internal/bootstrap"
	"github.com/creamcroissant/panelmirror/internal/config"
	"github.com/creamcroissant/panelmirror/internal/migrations"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/service"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
	"github.com/creamcroissant/panelmirror/internal/units"
)

func init() {
	// Migrate
	var migrateStatus bool
	var migrateRollback bool
	var migrateCmd = &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Database migration management",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := bootstrap.OpenSQLite(cfg.DB.Path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using DB path: %s\n", cfg.DB.Path)
			defer db.Close()

			if migrateStatus {
				return migrations.Status(db)
			}
			if migrateRollback {
				return migrations.Down(db)
			}

			action := "up"
			if len(args) > 0 {
				action = args[0]
			}

			switch action {
			case "up":
				return migrations.Up(db)
			case "down":
				return migrations.Down(db)
			case "status":
				return migrations.Status(db)
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
		},
	}
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show migration status")
	migrateCmd.Flags().BoolVar(&migrateRollback, "rollback", false, "Rollback the last migration")
	rootCmd.AddCommand(migrateCmd)

	// Import
	rootCmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Copy nodes, allocations, eggs and servers from the remote panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			infra, cleanup, err := openInfra()
			if err != nil {
				return err
			}
			defer cleanup()
			importer := service.NewImportService(infra.Store, infra.Panel, infra.Converter, cliLogger())
			report, err := importer.Import(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), report)
		},
	})

	// Users
	var usersCmd = &cobra.Command{
		Use:   "users",
		Short: "Mirrored user management",
	}
	usersCmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Mirror remote users with freshly generated local passwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			infra, cleanup, err := openInfra()
			if err != nil {
				return err
			}
			defer cleanup()
			importer := service.NewUserImportService(infra.Store, infra.Panel, infra.Hasher, cliLogger())
			result, err := importer.Import(cmd.Context())
			if err != nil {
				return err
			}
			return printImportedUsers(cmd.OutOrStdout(), result)
		},
	})
	rootCmd.AddCommand(usersCmd)

	// Server
	var serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Mirrored server management",
	}
	serverCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mirrored servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			infra, cleanup, err := openInfra()
			if err != nil {
				return err
			}
			defer cleanup()
			servers, err := infra.Store.Servers().List(cmd.Context())
			if err != nil {
				return err
			}
			return printServers(cmd.OutOrStdout(), servers, infra.Converter)
		},
	})

	var deleteQueued bool
	var deleteServerCmd = &cobra.Command{
		Use:   "delete <uuid>",
		Short: "Delete a server on the remote panel, then locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infra, cleanup, err := openInfra()
			if err != nil {
				return err
			}
			defer cleanup()
			if deleteQueued {
				id, err := infra.Queue.EnqueueServerDeletion(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued deletion job %s\n", id)
				return nil
			}
			result, err := infra.Deletions.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.RemoteDeleted {
				fmt.Fprintf(cmd.OutOrStdout(), "server %s not found on the remote panel; nothing changed\n", args[0])
				return nil
			}
			return writeYAML(cmd.OutOrStdout(), map[string]any{
				"uuid":                result.UUID,
				"remote_id":           result.RemoteID,
				"remote_deleted":      result.RemoteDeleted,
				"local_deleted":       result.LocalDeleted,
				"allocation_released": result.AllocationReleased,
			})
		},
	}
	deleteServerCmd.Flags().BoolVar(&deleteQueued, "queue", false, "Queue the deletion for the sync worker instead of running it now")
	serverCmd.AddCommand(deleteServerCmd)

	var req service.ProvisionRequest
	var createServerCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a server on the remote panel and mirror it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Name == "" || req.OwnerID <= 0 || req.EggID <= 0 || req.AllocationID <= 0 {
				return fmt.Errorf("name, owner, egg and allocation are required")
			}
			infra, cleanup, err := openInfra()
			if err != nil {
				return err
			}
			defer cleanup()
			provisioner := service.NewServerProvisionService(infra.Store, infra.Panel, infra.Converter, cliLogger())
			server, err := provisioner.Provision(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printServers(cmd.OutOrStdout(), []*repository.Server{server}, infra.Converter)
		},
	}
	flags := createServerCmd.Flags()
	flags.StringVar(&req.Name, "name", "", "Server name")
	flags.StringVar(&req.Description, "description", "", "Server description")
	flags.Int64Var(&req.OwnerID, "owner", 0, "Remote owner user id")
	flags.Int64Var(&req.EggID, "egg", 0, "Remote egg id")
	flags.Int64Var(&req.AllocationID, "allocation", 0, "Remote allocation id")
	flags.StringVar(&req.DockerImage, "image", "", "Docker image (defaults to the egg's first image)")
	flags.StringVar(&req.Startup, "startup", "", "Startup command (defaults to the egg's)")
	flags.StringToStringVar(&req.Environment, "env", nil, "Environment overrides KEY=VALUE")
	flags.Float64Var(&req.Limits.CPU, "cpu", 0, "CPU limit in cores (0 = unlimited)")
	flags.Int64Var(&req.Limits.Memory, "memory", 0, "Memory limit in MiB (0 = unlimited)")
	flags.Int64Var(&req.Limits.Swap, "swap", 0, "Swap limit in MiB")
	flags.Int64Var(&req.Limits.Disk, "disk", 0, "Disk limit in MiB (0 = unlimited)")
	flags.Int64Var(&req.Limits.IO, "io", 500, "Block IO weight")
	flags.Int64Var(&req.FeatureLimits.Databases, "databases", 0, "Database limit")
	flags.Int64Var(&req.FeatureLimits.Allocations, "allocations", 0, "Extra allocation limit")
	flags.Int64Var(&req.FeatureLimits.Backups, "backups", 0, "Backup limit")
	serverCmd.AddCommand(createServerCmd)
	rootCmd.AddCommand(serverCmd)

	// Convert
	var convertPrecision int32
	var convertLabel bool
	var convertCmd = &cobra.Command{
		Use:   "convert <value> <from> <to>",
		Short: "Convert a data size between units (B, KB..TB, KiB..TiB, auto, iauto)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[0], err)
			}
			from, err := units.ParseUnit(args[1])
			if err != nil {
				return err
			}
			to, err := units.ParseUnit(args[2])
			if err != nil {
				return err
			}
			conv := units.NewConverter(units.Options{LegacyRatio: cfg.Units.LegacyMiBRatio})
			q, err := conv.Convert(value, from, to, convertPrecision)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), q.Format(convertLabel))
			return nil
		},
	}
	convertCmd.Flags().Int32VarP(&convertPrecision, "precision", "p", 2, "Decimal places in the result")
	convertCmd.Flags().BoolVarP(&convertLabel, "label", "l", false, "Append the unit to the result")
	rootCmd.AddCommand(convertCmd)

	var cpuPrecision int32
	var cpuCmd = &cobra.Command{
		Use:   "cpu <value> <core-to-percent|percent-to-core>",
		Short: "Convert a CPU limit between cores and percentage points",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[0], err)
			}
			dir, err := units.ParseCPUDirection(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), units.ConvertCPU(value, dir, cpuPrecision).String())
			return nil
		},
	}
	cpuCmd.Flags().Int32VarP(&cpuPrecision, "precision", "p", units.DefaultCPUPrecision, "Decimal places in the result")
	rootCmd.AddCommand(cpuCmd)

	// Config
	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), cfg.Redacted())
		},
	})
	rootCmd.AddCommand(configCmd)
}

func cliLogger() *slog.Logger {
	cfg, err := loadConfig()
	if err != nil {
		cfg = &config.Config{}
	}
	return logging.New(logging.Options{
		Level:  cfg.Log.SlogLevel(),
		Format: "text",
		Output: os.Stderr,
	})
}

// openInfra opens and migrates the database, then builds the shared infrastructure.
func openInfra() (*bootstrap.Infrastructure, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := bootstrap.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	infra, err := bootstrap.BuildInfrastructure(cfg, db, cliLogger())
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return infra, func() { db.Close() }, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printImportedUsers(w io.Writer, result service.UserImportResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "OriginID\tName\tEmail\tPassword")
	for _, u := range result.Imported {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.OriginID, u.Name, u.Email, u.Password)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "imported=%d skipped=%d failed=%d (passwords are shown only once)\n",
		len(result.Imported), result.Skipped, result.Failed)
	return err
}

func printServers(w io.Writer, servers []*repository.Server, conv units.Converter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "UUID\tName\tStatus\tCPU\tMemory\tDisk")
	for _, s := range servers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.UUID, s.Name, s.Status, cpuLabel(s.Limits.CPU), sizeLabel(conv, s.Limits.Memory), sizeLabel(conv, s.Limits.Disk))
	}
	return tw.Flush()
}

func cpuLabel(cores float64) string {
	if cores <= 0 {
		return "unlimited"
	}
	return units.ConvertCPU(decimal.NewFromFloat(cores), units.CoreToPercent, 0).String() + "%"
}

func sizeLabel(conv units.Converter, mib int64) string {
	if mib <= 0 {
		return "unlimited"
	}
	q, err := conv.Convert(decimal.NewFromInt(mib), units.MiB, units.IAuto, 2)
	if err != nil {
		return fmt.Sprintf("%d MiB", mib)
	}
	return q.Label()
}
