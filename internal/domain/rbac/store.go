package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetActiveRole(ctx context.Context, userID string) (*RoleAssignment, error) {
	var out RoleAssignment
	var assignedBy *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, user_id, role_name, permissions, assigned_by, assigned_at, is_active
    FROM role_assignments
    WHERE user_id = $1 AND is_active
    ORDER BY assigned_at DESC
    LIMIT 1
  `, userID).Scan(&out.ID, &out.UserID, &out.RoleName, &out.Permissions, &assignedBy, &out.AssignedAt, &out.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if assignedBy != nil {
		out.AssignedBy = *assignedBy
	}
	return &out, nil
}

func (s *Store) ListRoles(ctx context.Context, userID string) ([]RoleAssignment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, role_name, permissions, assigned_by, assigned_at, is_active
    FROM role_assignments
    WHERE user_id = $1
    ORDER BY assigned_at DESC
  `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleAssignment
	for rows.Next() {
		var rec RoleAssignment
		var assignedBy *string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.RoleName, &rec.Permissions, &assignedBy, &rec.AssignedAt, &rec.IsActive); err != nil {
			return nil, err
		}
		if assignedBy != nil {
			rec.AssignedBy = *assignedBy
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) InsertAssignment(ctx context.Context, rec RoleAssignment) (RoleAssignment, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.AssignedAt.IsZero() {
		rec.AssignedAt = time.Now().UTC()
	}
	var assignedBy *string
	if rec.AssignedBy != "" {
		assignedBy = &rec.AssignedBy
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO role_assignments (id, user_id, role_name, permissions, assigned_by, assigned_at, is_active)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
  `, rec.ID, rec.UserID, rec.RoleName, rec.Permissions, assignedBy, rec.AssignedAt, rec.IsActive)
	if err != nil {
		return RoleAssignment{}, err
	}
	return rec, nil
}

// Deactivate flips every active row for the user. Targeting all active rows
// lets a double-active state left by a write race heal on the next assignment.
func (s *Store) Deactivate(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE role_assignments SET is_active = false
    WHERE user_id = $1 AND is_active
  `, userID)
	return err
}

// UpdatePermissions overwrites the permission snapshot on the active row.
// Returns (nil, nil) when the user has no active assignment.
func (s *Store) UpdatePermissions(ctx context.Context, userID string, permissions []string) (*RoleAssignment, error) {
	_, err := s.DB.Exec(ctx, `
    UPDATE role_assignments SET permissions = $1
    WHERE user_id = $2 AND is_active
  `, permissions, userID)
	if err != nil {
		return nil, err
	}
	return s.GetActiveRole(ctx, userID)
}
