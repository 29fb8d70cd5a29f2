package employees

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("employees: not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Create(ctx context.Context, emp Employee) (Employee, error) {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	if emp.Status == "" {
		emp.Status = StatusActive
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (id, user_id, first_name, last_name, email, title, department, status)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING created_at, updated_at
  `, emp.ID, emp.UserID, emp.FirstName, emp.LastName, emp.Email, emp.Title, emp.Department, emp.Status).
		Scan(&emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return Employee{}, err
	}
	return emp, nil
}

func (s *Store) Get(ctx context.Context, id string) (Employee, error) {
	return s.scanOne(s.DB.QueryRow(ctx, `
    SELECT id, user_id, first_name, last_name, email, title, department, status, created_at, updated_at
    FROM employees
    WHERE id = $1
  `, id))
}

func (s *Store) GetByUserID(ctx context.Context, userID string) (Employee, error) {
	return s.scanOne(s.DB.QueryRow(ctx, `
    SELECT id, user_id, first_name, last_name, email, title, department, status, created_at, updated_at
    FROM employees
    WHERE user_id = $1
  `, userID))
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, first_name, last_name, email, title, department, status, created_at, updated_at
    FROM employees
    ORDER BY last_name, first_name
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.UserID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Title, &emp.Department, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, emp Employee) (Employee, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET first_name = $1, last_name = $2, email = $3, title = $4, department = $5, updated_at = now()
    WHERE id = $6
  `, emp.FirstName, emp.LastName, emp.Email, emp.Title, emp.Department, emp.ID)
	if err != nil {
		return Employee{}, err
	}
	if tag.RowsAffected() == 0 {
		return Employee{}, ErrNotFound
	}
	return s.Get(ctx, emp.ID)
}

func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees SET status = $1, updated_at = now() WHERE id = $2
  `, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scanOne(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(&emp.ID, &emp.UserID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Title, &emp.Department, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return emp, err
}
