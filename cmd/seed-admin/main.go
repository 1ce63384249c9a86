package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/carepoint/internal/config"
	"github.com/BradenHooton/carepoint/internal/database"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/repositories"
	"github.com/BradenHooton/carepoint/internal/services"
	pkgauth "github.com/BradenHooton/carepoint/pkg/auth"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
)

// seed-admin creates the first back-office account. The password is read
// from ADMIN_PASSWORD so it stays out of shell history.
func main() {
	username := flag.String("username", envOr("ADMIN_USERNAME", "admin"), "account username")
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "account email")
	role := flag.String("role", string(models.RoleSuperAdmin), "admin, super-admin or staff")
	firstName := flag.String("first-name", "System", "first name")
	lastName := flag.String("last-name", "Administrator", "last name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel, cfg.Server.Env)

	password := os.Getenv("ADMIN_PASSWORD")
	if *email == "" || password == "" {
		logger.Error("ADMIN_EMAIL (or -email) and ADMIN_PASSWORD are required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := ensureAdmin(ctx, cfg, logger, services.NewAdminInput{
		Username:  *username,
		Email:     *email,
		Password:  password,
		FirstName: *firstName,
		LastName:  *lastName,
		Role:      models.Role(*role),
	}); err != nil {
		logger.Error("failed to seed admin", slog.Any("error", err))
		os.Exit(1)
	}
}

func ensureAdmin(ctx context.Context, cfg *config.Config, logger *slog.Logger, in services.NewAdminInput) error {
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewAdminRepository(db)

	_, err = repo.GetByEmail(ctx, in.Email)
	if err == nil {
		logger.Info("admin already exists", slog.String("email", pkglogger.SanitizedEmail(in.Email)))
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("check existing admin: %w", err)
	}

	hasher, err := pkgauth.NewHasher(pkgauth.Algorithm(cfg.Auth.PasswordHash), cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	service := services.NewAdminService(repo, hasher, logger, pkglogger.NewAuditLogger(logger))
	seeder := &models.Principal{AccountID: "seed-admin", Username: "seed-admin", Role: models.RoleSuperAdmin, IssuedAt: time.Now()}

	created, err := service.Create(ctx, seeder, in)
	if err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid account: %v", ve.Fields)
		}
		return err
	}

	logger.Info("admin created",
		slog.String("admin_id", created.ID),
		slog.String("username", created.Username),
		slog.String("role", string(created.Role)))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
