// Command migrate runs schema operations for the Launchpad database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"launchpad/internal/config"
	"launchpad/internal/database"
	"launchpad/internal/middleware"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|auto|status|down <version>|inspect [table]|nuke -yes>")
}

func run() error {
	confirm := flag.Bool("yes", false, "confirm destructive commands")
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.InitLogger(cfg.Env, cfg.LogLevel)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	log := middleware.Logger
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Info("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Info("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		log.Info("schema status",
			slog.String("mode", status.Mode),
			slog.String("env", status.Environment),
			slog.Bool("run_sql", status.WillRunSQL),
			slog.Bool("run_auto", status.WillRunAutoMigrate),
			slog.Int("applied", len(status.AppliedVersions)),
			slog.Int("pending", len(status.PendingMigrations)),
			slog.Any("missing_tables", status.MissingTables),
		)
		for _, m := range status.PendingMigrations {
			log.Info("pending migration", slog.String("migration", m.String()))
		}
	case "down":
		if flag.NArg() < 2 {
			return usage()
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Info("rolled back migration", slog.Int("version", version))
	case "inspect":
		return inspect(ctx, db, flag.Arg(1))
	case "nuke":
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to drop the schema in %s", cfg.Env)
		}
		if !*confirm {
			return fmt.Errorf("nuke drops every table; rerun with -yes")
		}
		if err := db.WithContext(ctx).Exec("DROP SCHEMA public CASCADE; CREATE SCHEMA public; GRANT ALL ON SCHEMA public TO public;").Error; err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		log.Warn("public schema dropped and recreated")
	default:
		return usage()
	}

	return nil
}

// inspect prints public tables, or the columns and constraints of one table.
func inspect(ctx context.Context, db *gorm.DB, table string) error {
	db = db.WithContext(ctx)
	if table == "" {
		var tables []string
		if err := db.Raw("SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name").
			Scan(&tables).Error; err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		for _, t := range tables {
			fmt.Println(t)
		}
		return nil
	}

	var columns []struct {
		ColumnName string `gorm:"column:column_name"`
		DataType   string `gorm:"column:data_type"`
		IsNullable string `gorm:"column:is_nullable"`
	}
	if err := db.Raw("SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' AND table_name = ? ORDER BY ordinal_position", table).
		Scan(&columns).Error; err != nil {
		return fmt.Errorf("list columns: %w", err)
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %q not found", table)
	}
	fmt.Printf("columns of %s:\n", table)
	for _, c := range columns {
		fmt.Printf("  %-24s %-28s nullable=%s\n", c.ColumnName, c.DataType, c.IsNullable)
	}

	var constraints []struct {
		ConstraintName string `gorm:"column:constraint_name"`
		ConstraintType string `gorm:"column:constraint_type"`
	}
	if err := db.Raw("SELECT constraint_name, constraint_type FROM information_schema.table_constraints WHERE table_schema = 'public' AND table_name = ? ORDER BY constraint_name", table).
		Scan(&constraints).Error; err != nil {
		return fmt.Errorf("list constraints: %w", err)
	}
	fmt.Printf("constraints of %s:\n", table)
	for _, c := range constraints {
		fmt.Printf("  %-40s %s\n", c.ConstraintName, c.ConstraintType)
	}
	return nil
}
