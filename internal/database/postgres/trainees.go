package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/scanin/scanin/internal/database"
)

// TraineeRepository provides PostgreSQL-backed trainee and template storage.
type TraineeRepository struct {
	pool *Pool
}

// NewTraineeRepository creates a new PostgreSQL trainee repository
func NewTraineeRepository(pool *Pool) *TraineeRepository {
	return &TraineeRepository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Get retrieves a trainee by id.
func (r *TraineeRepository) Get(ctx context.Context, id int64) (*database.Trainee, error) {
	query := `
		SELECT id, unique_name, email, registered_by, created_at
		FROM trainees
		WHERE id = $1
	`

	var t database.Trainee
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.UniqueName,
		&t.Email,
		&t.RegisteredBy,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrTraineeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query trainee: %w", err)
	}
	return &t, nil
}

// GetByName retrieves a trainee by its unique name.
func (r *TraineeRepository) GetByName(ctx context.Context, name string) (*database.Trainee, error) {
	query := `
		SELECT id, unique_name, email, registered_by, created_at
		FROM trainees
		WHERE unique_name = $1
	`

	var t database.Trainee
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&t.ID,
		&t.UniqueName,
		&t.Email,
		&t.RegisteredBy,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrTraineeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query trainee by name: %w", err)
	}
	return &t, nil
}

// List returns all trainees in enrollment order.
func (r *TraineeRepository) List(ctx context.Context) ([]database.Trainee, error) {
	query := `
		SELECT id, unique_name, email, registered_by, created_at
		FROM trainees
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query trainees: %w", err)
	}
	defer rows.Close()

	var trainees []database.Trainee
	for rows.Next() {
		var t database.Trainee
		if err := rows.Scan(&t.ID, &t.UniqueName, &t.Email, &t.RegisteredBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trainee: %w", err)
		}
		trainees = append(trainees, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trainees: %w", err)
	}
	return trainees, nil
}

// AllTemplates returns every stored template ordered by insertion. The stable
// order fixes which trainee wins when two candidates score identically.
func (r *TraineeRepository) AllTemplates(ctx context.Context) ([]database.FaceTemplate, error) {
	query := `
		SELECT id, trainee_id, embedding, source, dim, created_at
		FROM face_templates
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// TemplatesByTrainee returns the templates owned by one trainee.
func (r *TraineeRepository) TemplatesByTrainee(ctx context.Context, traineeID int64) ([]database.FaceTemplate, error) {
	query := `
		SELECT id, trainee_id, embedding, source, dim, created_at
		FROM face_templates
		WHERE trainee_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, traineeID)
	if err != nil {
		return nil, fmt.Errorf("query trainee templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// Create enrolls a trainee together with its first template in one transaction.
func (r *TraineeRepository) Create(ctx context.Context, trainee *database.Trainee, template *database.FaceTemplate) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO trainees (unique_name, email, registered_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, trainee.UniqueName, trainee.Email, trainee.RegisteredBy).Scan(&trainee.ID, &trainee.CreatedAt)
	if isUniqueViolation(err) {
		return database.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("insert trainee: %w", err)
	}

	vec := pgvector.NewVector(template.Embedding)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO face_templates (trainee_id, embedding, source, dim)
		VALUES ($1, $2::vector, $3, $4)
		RETURNING id, created_at
	`, trainee.ID, vec, template.Source, template.Dim).Scan(&template.ID, &template.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	template.TraineeID = trainee.ID

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// AddTemplate appends a reference template to an existing trainee.
func (r *TraineeRepository) AddTemplate(ctx context.Context, template *database.FaceTemplate) error {
	vec := pgvector.NewVector(template.Embedding)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO face_templates (trainee_id, embedding, source, dim)
		VALUES ($1, $2::vector, $3, $4)
		RETURNING id, created_at
	`, template.TraineeID, vec, template.Source, template.Dim).Scan(&template.ID, &template.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return database.ErrTraineeNotFound
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// Delete removes a trainee; templates and attendance rows cascade.
func (r *TraineeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM trainees WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete trainee: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trainee: %w", err)
	}
	if affected == 0 {
		return database.ErrTraineeNotFound
	}
	return nil
}

func scanTemplates(rows *sql.Rows) ([]database.FaceTemplate, error) {
	var templates []database.FaceTemplate

	for rows.Next() {
		var tmpl database.FaceTemplate
		var vec pgvector.Vector

		if err := rows.Scan(
			&tmpl.ID,
			&tmpl.TraineeID,
			&vec,
			&tmpl.Source,
			&tmpl.Dim,
			&tmpl.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}

		tmpl.Embedding = vec.Slice()
		templates = append(templates, tmpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, nil
}

// Verify interface compliance
var _ database.TraineeReader = (*TraineeRepository)(nil)
var _ database.TraineeWriter = (*TraineeRepository)(nil)
