// publisher_repository.go implements PublisherRepository, providing database
// queries for ActiveState trusted publisher registrations, both the regular
// kind bound to an existing project and the pending kind that reserves a
// project name.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/package-index/package-index/internal/db/models"
)

// PublisherRepository handles database operations for trusted publishers
type PublisherRepository struct {
	db *sql.DB
}

// NewPublisherRepository creates a new publisher repository
func NewPublisherRepository(db *sql.DB) *PublisherRepository {
	return &PublisherRepository{db: db}
}

// === Regular publishers ===

// Create inserts a publisher registration
func (r *PublisherRepository) Create(ctx context.Context, pub *models.ActiveStatePublisher) error {
	query := `
		INSERT INTO activestate_publishers
			(project_id, organization, organization_id, activestate_project_name, actor, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		pub.ProjectID,
		pub.Organization,
		pub.OrganizationID,
		pub.ActiveStateProjectName,
		pub.Actor,
		pub.ActorID,
	).Scan(&pub.ID, &pub.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	return nil
}

// Exists reports whether an identical registration is already present for the
// project. Matching is on the submitted names, mirroring the table's unique
// constraint.
func (r *PublisherRepository) Exists(ctx context.Context, projectID, organization, asProjectName, actor string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM activestate_publishers
			WHERE project_id = $1 AND organization = $2
			  AND activestate_project_name = $3 AND actor = $4
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, projectID, organization, asProjectName, actor).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check publisher existence: %w", err)
	}

	return exists, nil
}

// GetByID retrieves a publisher by ID
func (r *PublisherRepository) GetByID(ctx context.Context, id string) (*models.ActiveStatePublisher, error) {
	query := `
		SELECT id, project_id, organization, organization_id,
		       activestate_project_name, actor, actor_id, created_at
		FROM activestate_publishers
		WHERE id = $1
	`

	pub := &models.ActiveStatePublisher{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pub.ID,
		&pub.ProjectID,
		&pub.Organization,
		&pub.OrganizationID,
		&pub.ActiveStateProjectName,
		&pub.Actor,
		&pub.ActorID,
		&pub.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get publisher: %w", err)
	}

	return pub, nil
}

// ListByProject retrieves all publishers registered for a project
func (r *PublisherRepository) ListByProject(ctx context.Context, projectID string) ([]*models.ActiveStatePublisher, error) {
	query := `
		SELECT id, project_id, organization, organization_id,
		       activestate_project_name, actor, actor_id, created_at
		FROM activestate_publishers
		WHERE project_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list publishers: %w", err)
	}
	defer rows.Close()

	publishers := make([]*models.ActiveStatePublisher, 0)
	for rows.Next() {
		pub := &models.ActiveStatePublisher{}
		err := rows.Scan(
			&pub.ID,
			&pub.ProjectID,
			&pub.Organization,
			&pub.OrganizationID,
			&pub.ActiveStateProjectName,
			&pub.Actor,
			&pub.ActorID,
			&pub.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publisher: %w", err)
		}
		publishers = append(publishers, pub)
	}

	return publishers, rows.Err()
}

// Delete removes a publisher registration. Returns false when no row matched.
func (r *PublisherRepository) Delete(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM activestate_publishers WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete publisher: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	return affected > 0, nil
}

// === Pending publishers ===

// CreatePending inserts a pending publisher registration
func (r *PublisherRepository) CreatePending(ctx context.Context, pub *models.PendingActiveStatePublisher) error {
	query := `
		INSERT INTO pending_activestate_publishers
			(project_name, normalized_project_name, organization, organization_id,
			 activestate_project_name, actor, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		pub.ProjectName,
		pub.NormalizedProjectName,
		pub.Organization,
		pub.OrganizationID,
		pub.ActiveStateProjectName,
		pub.Actor,
		pub.ActorID,
	).Scan(&pub.ID, &pub.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create pending publisher: %w", err)
	}

	return nil
}

// PendingExists reports whether an identical pending registration is present
func (r *PublisherRepository) PendingExists(ctx context.Context, normalizedProjectName, organization, asProjectName, actor string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM pending_activestate_publishers
			WHERE normalized_project_name = $1 AND organization = $2
			  AND activestate_project_name = $3 AND actor = $4
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, normalizedProjectName, organization, asProjectName, actor).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending publisher existence: %w", err)
	}

	return exists, nil
}

// GetPendingByID retrieves a pending publisher by ID
func (r *PublisherRepository) GetPendingByID(ctx context.Context, id string) (*models.PendingActiveStatePublisher, error) {
	query := `
		SELECT id, project_name, normalized_project_name, organization, organization_id,
		       activestate_project_name, actor, actor_id, created_at
		FROM pending_activestate_publishers
		WHERE id = $1
	`

	pub := &models.PendingActiveStatePublisher{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pub.ID,
		&pub.ProjectName,
		&pub.NormalizedProjectName,
		&pub.Organization,
		&pub.OrganizationID,
		&pub.ActiveStateProjectName,
		&pub.Actor,
		&pub.ActorID,
		&pub.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get pending publisher: %w", err)
	}

	return pub, nil
}

// ListPending retrieves a paginated list of pending publishers
func (r *PublisherRepository) ListPending(ctx context.Context, limit, offset int) ([]*models.PendingActiveStatePublisher, error) {
	query := `
		SELECT id, project_name, normalized_project_name, organization, organization_id,
		       activestate_project_name, actor, actor_id, created_at
		FROM pending_activestate_publishers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending publishers: %w", err)
	}
	defer rows.Close()

	publishers := make([]*models.PendingActiveStatePublisher, 0)
	for rows.Next() {
		pub := &models.PendingActiveStatePublisher{}
		err := rows.Scan(
			&pub.ID,
			&pub.ProjectName,
			&pub.NormalizedProjectName,
			&pub.Organization,
			&pub.OrganizationID,
			&pub.ActiveStateProjectName,
			&pub.Actor,
			&pub.ActorID,
			&pub.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending publisher: %w", err)
		}
		publishers = append(publishers, pub)
	}

	return publishers, rows.Err()
}

// DeletePending removes a pending publisher registration. Returns false when
// no row matched.
func (r *PublisherRepository) DeletePending(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM pending_activestate_publishers WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending publisher: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	return affected > 0, nil
}
