package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"peopleops/internal/domain/auth"
	"peopleops/internal/domain/rbac"
	"peopleops/internal/platform/config"
)

// Seed creates the bootstrap super-admin when none exists. The engine's
// always-permitted top-role assignment is the only path that can grant the
// top role here, so the very first assignment goes through the same protocol
// as every later one.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	email := strings.TrimSpace(cfg.SeedAdminEmail)
	if email == "" {
		return nil
	}
	if cfg.SeedAdminPassword == "" {
		return errors.New("SEED_ADMIN_PASSWORD is required when SEED_ADMIN_EMAIL is set")
	}

	store := auth.NewStore(pool)
	engine := rbac.NewEngine(rbac.NewStore(pool))

	user, err := store.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, auth.ErrUserNotFound) {
		return err
	}

	userID := user.ID
	if errors.Is(err, auth.ErrUserNotFound) {
		hash, err := auth.HashPassword(cfg.SeedAdminPassword)
		if err != nil {
			return err
		}
		userID, err = store.CreateUser(ctx, email, hash)
		if err != nil {
			return err
		}
	}

	if active := engine.ActiveRole(ctx, userID); active != nil && active.RoleName == rbac.TopRole {
		return nil
	}

	res := engine.AssignRole(ctx, userID, rbac.TopRole, userID)
	if !res.Success {
		return fmt.Errorf("seed super-admin assignment failed: %s", res.Message)
	}
	return nil
}
