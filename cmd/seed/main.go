package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-ddd-account-service/config"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
	pginfra "github.com/oksasatya/go-ddd-account-service/internal/infrastructure/postgres"
	sqliteinfra "github.com/oksasatya/go-ddd-account-service/internal/infrastructure/sqlite"
	"github.com/oksasatya/go-ddd-account-service/pkg/helpers"
)

// seed creates a demo account. With -confirmed the account is marked
// confirmed right away, skipping the email round trip.
func main() {
	email := flag.String("email", "demo@example.com", "account email")
	password := flag.String("password", "correct horse battery staple 42!", "account password")
	confirmed := flag.Bool("confirmed", true, "mark the email as confirmed")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	var repo repository.UserRepository
	switch cfg.DBDriver {
	case "postgres":
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		db := pginfra.OpenDB(pool)
		defer func() { _ = db.Close() }()
		if err := pginfra.Migrate(db, cfg.MigrationsDir, logger); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		repo = pginfra.NewUserRepository(db)
	case "sqlite":
		db, err := sqliteinfra.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		defer func() { _ = db.Close() }()
		r := sqliteinfra.NewUserRepository(db)
		if err := r.Init(ctx); err != nil {
			log.Fatalf("failed to init sqlite: %v", err)
		}
		repo = r
	default:
		log.Fatalf("seeding needs a persistent DB_DRIVER, got %q", cfg.DBDriver)
	}

	addr, err := valueobject.NewEmailAddress(*email)
	if err != nil {
		log.Fatalf("email: %v", err)
	}
	pwd, err := valueobject.NewPassword(*password)
	if err != nil {
		log.Fatalf("password: %v", err)
	}
	hash, err := helpers.HashPassword(pwd.Bytes())
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	id, err := repo.Create(ctx, entity.NewUser{Email: addr, PasswordHash: hash})
	if apperror.Is(err, apperror.CodeDuplicateEmail) {
		fmt.Printf("user %s already exists\n", addr)
		return
	}
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	if *confirmed {
		if err := repo.MarkConfirmed(ctx, id, nil); err != nil {
			log.Fatalf("failed to confirm user: %v", err)
		}
	}
	fmt.Printf("seeded user: id=%s email=%s confirmed=%v\n", id, addr, *confirmed)
}
