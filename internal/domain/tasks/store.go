package tasks

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("tasks: not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Create(ctx context.Context, task Task) (Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = StatusOpen
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO tasks (id, title, description, assignee_id, created_by, status, due_date)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING created_at, updated_at
  `, task.ID, task.Title, task.Description, task.AssigneeID, task.CreatedBy, task.Status, task.DueDate).
		Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *Store) Get(ctx context.Context, id string) (Task, error) {
	var task Task
	err := s.DB.QueryRow(ctx, `
    SELECT id, title, COALESCE(description, ''), assignee_id, created_by, status, due_date, created_at, updated_at
    FROM tasks
    WHERE id = $1
  `, id).Scan(&task.ID, &task.Title, &task.Description, &task.AssigneeID, &task.CreatedBy, &task.Status, &task.DueDate, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return task, err
}

func (s *Store) ListByAssignee(ctx context.Context, assigneeID string, limit, offset int) ([]Task, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, title, COALESCE(description, ''), assignee_id, created_by, status, due_date, created_at, updated_at
    FROM tasks
    WHERE assignee_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
  `, assigneeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var task Task
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.AssigneeID, &task.CreatedBy, &task.Status, &task.DueDate, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id, status string) (Task, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tasks SET status = $1, updated_at = now() WHERE id = $2
  `, status, id)
	if err != nil {
		return Task{}, err
	}
	if tag.RowsAffected() == 0 {
		return Task{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
