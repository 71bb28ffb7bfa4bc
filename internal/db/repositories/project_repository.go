// project_repository.go implements ProjectRepository, providing database
// queries for index projects. Its Exists method backs the pending publisher
// form's project name uniqueness check.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/package-index/package-index/internal/db/models"
	"github.com/package-index/package-index/internal/validation"
)

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Exists reports whether a project with the given name is already registered.
// The comparison uses normalized names, so "My_Package" collides with
// "my-package".
func (r *ProjectRepository) Exists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM projects WHERE normalized_name = $1)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, validation.NormalizeProjectName(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check project existence: %w", err)
	}

	return exists, nil
}

// GetByName retrieves a project by its normalized name
func (r *ProjectRepository) GetByName(ctx context.Context, name string) (*models.Project, error) {
	query := `
		SELECT id, name, normalized_name, created_at
		FROM projects
		WHERE normalized_name = $1
	`

	project := &models.Project{}
	err := r.db.QueryRowContext(ctx, query, validation.NormalizeProjectName(name)).Scan(
		&project.ID,
		&project.Name,
		&project.NormalizedName,
		&project.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, name, normalized_name, created_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.NormalizedName,
		&project.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// Create creates a new project. The normalized name is derived from the
// submitted name before insert.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (name, normalized_name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	project.NormalizedName = validation.NormalizeProjectName(project.Name)
	err := r.db.QueryRowContext(ctx, query, project.Name, project.NormalizedName).Scan(
		&project.ID,
		&project.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// List retrieves a paginated list of projects
func (r *ProjectRepository) List(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	query := `
		SELECT id, name, normalized_name, created_at
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project := &models.Project{}
		err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.NormalizedName,
			&project.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// Count returns the total number of projects
func (r *ProjectRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM projects`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}

	return count, nil
}
