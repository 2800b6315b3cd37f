package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smiling-critters/critter-gateway/internal/auth"
	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/store"
)

func main() {
	pin := flag.String("pin", "", "new parent PIN (generated when empty)")
	length := flag.Int("length", 6, "length of a generated PIN")
	seed := flag.Bool("seed", false, "also insert any missing default settings")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	redisAddr := flag.String("redis-addr", envOrDefault("REDIS_ADDR", "localhost:6379"), "redis address of the gateway's settings cache (empty to skip)")
	flag.Parse()

	newPIN := *pin
	if newPIN == "" {
		var err error
		newPIN, err = auth.GeneratePIN(*length)
		if err != nil {
			log.Fatalf("failed to generate pin: %v", err)
		}
	}
	if err := auth.ValidatePIN(newPIN); err != nil {
		log.Fatalf("invalid pin: %v", err)
	}

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		host := envOrDefault("DB_HOST", "localhost")
		port := envOrDefault("DB_PORT", "5432")
		u := envOrDefault("DB_USER", "critters")
		pass := envOrDefault("DB_PASSWORD", "critters-dev")
		dbname := envOrDefault("DB_NAME", "critters")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", u, pass, host, port, dbname)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, dsn, 2, time.Minute)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Set drops the cached PIN so running gateways reject the old one at once.
	var rdb *redis.Client
	if *redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: *redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warning: redis not reachable, running gateways keep the old pin until their settings cache expires: %v", err)
			rdb = nil
		}
	}
	st := store.New(pool, rdb, 0)

	if *seed {
		n, err := st.SeedDefaults(ctx, config.DefaultSettings())
		if err != nil {
			log.Fatalf("failed to seed settings: %v", err)
		}
		fmt.Printf("seeded %d default settings\n", n)
	}

	if err := st.Set(ctx, config.KeyParentPIN, auth.HashPIN(newPIN)); err != nil {
		log.Fatalf("failed to store pin: %v", err)
	}

	fmt.Println("=== Parent PIN Reset ===")
	fmt.Println()
	fmt.Println("  New parent PIN (save this, it is stored hashed and will NOT be shown again):")
	fmt.Printf("  %s\n", newPIN)
	fmt.Println()
	if rdb == nil {
		fmt.Println("  Running gateways apply it within the settings cache TTL.")
	}
	fmt.Println("========================")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
