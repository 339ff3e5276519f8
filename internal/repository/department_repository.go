package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-adm/university-api/internal/models"
)

// DepartmentRepository handles persistence of academic departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// FindByID returns a department by identifier.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.AcademicDepartment, error) {
	const query = `SELECT id, name, short_name, created_at, updated_at FROM departments WHERE id = $1`
	var department models.AcademicDepartment
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// List returns all departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.AcademicDepartment, error) {
	const query = `SELECT id, name, short_name, created_at, updated_at FROM departments ORDER BY name`
	var departments []models.AcademicDepartment
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// Create persists a new department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.AcademicDepartment) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, name, short_name, created_at, updated_at)
        VALUES (:id, :name, :short_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update overwrites mutable department attributes.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.AcademicDepartment) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, short_name = :short_name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}
