package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/erazemk/foodmap/internal/bootstrap"
	"github.com/erazemk/foodmap/internal/config"
	"github.com/erazemk/foodmap/internal/db"
	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
	"github.com/erazemk/foodmap/internal/sweep"
)

const usage = `Usage: foodmapctl <command> [flags]

Commands:
  init                      create a new database with an admin account
  migrate [-status]         apply pending migrations, or list them
  locations import <file>   add locations from a JSON array of
                            {name, lat, lng, aliases: [{kind, pattern}]}
  locations list            list known locations
  locations resolve <text>  show which location free text refers to
  users add [-role r] <n>   create an operator account
  sweep                     expire and roll forward offerings once

Common flags: -db <path>, -media <dir> (defaults from FOODMAP_DB and
FOODMAP_MEDIA_DIR).
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	switch os.Args[1] {
	case "init":
		err = cmdInit(cfg, os.Args[2:])
	case "migrate":
		err = cmdMigrate(cfg, os.Args[2:])
	case "locations":
		err = cmdLocations(cfg, os.Args[2:])
	case "users":
		err = cmdUsers(cfg, os.Args[2:])
	case "sweep":
		err = cmdSweep(cfg, os.Args[2:])
	case "-h", "-help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name string, cfg *config.Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to SQLite database file")
	return fs
}

// openDatabase opens an existing database and brings its schema up to date.
func openDatabase(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s: %w (run foodmapctl init first)", path, err)
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func cmdInit(cfg config.Config, args []string) error {
	fs := newFlagSet("init", &cfg)
	fs.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "admin username")
	fs.Parse(args)

	if _, err := os.Stat(cfg.DBPath); err == nil {
		return fmt.Errorf("database file %s already exists", cfg.DBPath)
	}

	database, password, err := bootstrap.InitDatabase(cfg.DBPath, cfg.AdminUser)
	if err != nil {
		return err
	}
	database.Close()

	bootstrap.PrintInitResult(os.Stdout, cfg.DBPath, cfg.AdminUser, password)
	return nil
}

func cmdMigrate(cfg config.Config, args []string) error {
	fs := newFlagSet("migrate", &cfg)
	status := fs.Bool("status", false, "list migrations instead of applying them")
	fs.Parse(args)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	ctx := context.Background()

	if *status {
		migrations, err := db.Status(ctx, database)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT")
		for _, m := range migrations {
			applied := "-"
			if !m.AppliedAt.IsZero() {
				applied = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Source.Version, m.State, applied)
		}
		return tw.Flush()
	}

	version, err := db.Migrate(ctx, database)
	if err != nil {
		return err
	}
	fmt.Printf("Schema at version %d.\n", version)
	return nil
}

func cmdLocations(cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("locations needs a subcommand: import, list or resolve")
	}

	switch args[0] {
	case "import":
		fs := newFlagSet("locations import", &cfg)
		fs.Parse(args[1:])
		if fs.NArg() != 1 {
			return errors.New("usage: foodmapctl locations import [-db path] <file.json>")
		}
		return importLocations(cfg.DBPath, fs.Arg(0))
	case "list":
		fs := newFlagSet("locations list", &cfg)
		fs.Parse(args[1:])
		return listLocations(cfg.DBPath)
	case "resolve":
		fs := newFlagSet("locations resolve", &cfg)
		fs.Parse(args[1:])
		if fs.NArg() == 0 {
			return errors.New("usage: foodmapctl locations resolve [-db path] <text>")
		}
		return resolveLocation(cfg.DBPath, strings.Join(fs.Args(), " "))
	}
	return fmt.Errorf("unknown locations subcommand: %s", args[0])
}

func importLocations(dbPath, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var locations []model.Location
	if err := json.Unmarshal(data, &locations); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}

	database, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	res, err := store.ImportLocations(context.Background(), database, locations)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d locations, skipped %d existing, added %d aliases.\n", res.Inserted, res.Skipped, res.Aliases)
	return nil
}

func listLocations(dbPath string) error {
	database, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	locations, err := store.ListLocations(context.Background(), database)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLAT\tLNG")
	for _, l := range locations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", l.ID, l.Name, model.FormatCoordinate(l.Lat), model.FormatCoordinate(l.Lng))
	}
	return tw.Flush()
}

func resolveLocation(dbPath, text string) error {
	database, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	loc, err := store.ResolveLocation(context.Background(), database, text)
	if err != nil {
		return err
	}
	if loc == nil {
		return errors.New("no location matches")
	}
	fmt.Printf("%d\t%s\n", loc.ID, loc.Name)
	return nil
}

func cmdUsers(cfg config.Config, args []string) error {
	if len(args) == 0 || args[0] != "add" {
		return errors.New("usage: foodmapctl users add [-db path] [-role operator|admin] <username>")
	}

	fs := newFlagSet("users add", &cfg)
	role := fs.String("role", model.RoleOperator, "operator or admin")
	fs.Parse(args[1:])
	if fs.NArg() != 1 {
		return errors.New("usage: foodmapctl users add [-db path] [-role operator|admin] <username>")
	}
	if !model.ValidRole(*role) {
		return fmt.Errorf("unknown role %q", *role)
	}

	database, err := openDatabase(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	password, err := bootstrap.CreateOperator(context.Background(), database, fs.Arg(0), *role)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s %s with password: %s\n", *role, fs.Arg(0), password)
	return nil
}

func cmdSweep(cfg config.Config, args []string) error {
	fs := newFlagSet("sweep", &cfg)
	fs.StringVar(&cfg.MediaDir, "media", cfg.MediaDir, "directory for uploaded images")
	fs.Parse(args)

	database, err := openDatabase(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	images, err := media.NewDir(cfg.MediaDir)
	if err != nil {
		return err
	}

	sweeper := sweep.New(database, images, slog.Default())
	sweeper.SetZone(cfg.Zone)
	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Expired %d offerings: %d rolled forward, %d failed to roll.\n", res.Expired, res.Rolled, res.Failed)
	return nil
}
