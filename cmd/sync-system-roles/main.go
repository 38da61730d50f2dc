package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/config"
	"github.com/stemsi/hris-authz/internal/database"
	"github.com/stemsi/hris-authz/internal/logger"
	"github.com/stemsi/hris-authz/internal/repository"
	"github.com/stemsi/hris-authz/internal/service"
)

func main() {
	noRedis := flag.Bool("no-redis", false, "Skip cache invalidation (other instances keep cached sets until TTL)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	var invalidator service.Invalidator
	if !*noRedis {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis, rerun with -no-redis to skip invalidation")
		}
		defer rdb.Close()
		invalidator = cache.NewPermissionCache(rdb, cfg.PermissionCacheTTL, log)
	}

	// ─── Initialize Service ────────────────────────────────────────────
	roleService := service.NewRoleService(
		repository.NewRoleRepository(pool),
		repository.NewPermissionRepository(pool),
		invalidator,
		log,
	)

	fmt.Println("=== Sync System Roles ===")
	fmt.Println("Adds every enum fallback permission a system role lacks as a binding. Nothing is removed.")

	results, err := roleService.SyncSystemRoles(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}
	if len(results) == 0 {
		fmt.Println("No system roles found. Ensure migrations have run.")
		return
	}

	var added int64
	for _, r := range results {
		fmt.Printf("  %-16s (id %d): %d binding(s) added\n", r.RoleName, r.RoleID, r.Added)
		if len(r.Missing) > 0 {
			fmt.Printf("      not in catalog: %s\n", strings.Join(r.Missing, ", "))
		}
		added += r.Added
	}
	fmt.Printf("\nDone. %d binding(s) added across %d system role(s).\n", added, len(results))
}
