// Command opsctl runs operator tasks against the configured database:
// reference seeding, superuser provisioning and itinerary master backfill.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"goimomi/app"
	"goimomi/auth"
	"goimomi/config"
	"goimomi/db"
	"goimomi/filemgr"
	"goimomi/itinerary"
	"goimomi/rdx"
	"goimomi/reference"
)

const usage = `usage: opsctl <command> [flags]

commands:
  seed <table|all> [policy]    load bundled reference data (%s)
  create-admin -username U -password P [-email E]
                               create a superuser or reset its password
  backfill-masters             link itinerary days without a master template
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, strings.Join(reference.SeedTables(), ", "))
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "seed":
		err = runSeed(ctx, cfg, args)
	case "create-admin":
		err = runCreateAdmin(ctx, cfg, args)
	case "backfill-masters":
		err = runBackfill(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, usage, strings.Join(reference.SeedTables(), ", "))
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func newApp(ctx context.Context, cfg config.Config) *app.App {
	a := &app.App{
		Cfg:   cfg,
		DB:    db.Init(cfg),
		Files: filemgr.NewStore(cfg.UploadRoot, cfg.MaxUploadBytes()),
		Cache: rdx.NewCache(nil, cfg.ReferenceTTL),
	}
	conn, err := rdx.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️ reference cache will not be invalidated: %v", err)
	} else if conn != nil {
		a.Cache = rdx.NewCache(conn, cfg.ReferenceTTL)
	}
	return a
}

func runSeed(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("seed needs a table: %s or all", strings.Join(reference.SeedTables(), ", "))
	}
	tables := []string{args[0]}
	if args[0] == "all" {
		tables = reference.SeedTables()
	}
	var policy config.SeedPolicy
	if len(args) > 1 {
		policy = config.SeedPolicy(args[1])
	}

	a := newApp(ctx, cfg)
	for _, table := range tables {
		res, err := reference.Seed(ctx, a, table, policy)
		if err != nil {
			return err
		}
		log.Printf("🌱 %s", res)
	}
	return nil
}

func runCreateAdmin(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "admin", "account name")
	email := fs.String("email", "", "contact address")
	password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "password (defaults to $ADMIN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a := newApp(ctx, cfg)
	created, err := auth.EnsureSuperuser(ctx, a.DB, *username, *email, *password)
	if err != nil {
		return err
	}
	if created {
		log.Printf("✅ superuser %s created", *username)
	} else {
		log.Printf("✅ superuser %s updated", *username)
	}
	return nil
}

func runBackfill(ctx context.Context, cfg config.Config) error {
	a := newApp(ctx, cfg)
	res, err := itinerary.Backfill(ctx, a.DB, a.Files)
	if err != nil {
		return err
	}
	log.Printf("✅ %s", res)
	return nil
}
