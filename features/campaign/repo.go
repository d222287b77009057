package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, plan *Plan) error {
	brief, err := json.Marshal(plan.Brief)
	if err != nil {
		return fmt.Errorf("marshal brief: %w", err)
	}
	strategy, err := json.Marshal(plan.Strategy)
	if err != nil {
		return fmt.Errorf("marshal strategy: %w", err)
	}
	citations, err := json.Marshal(plan.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	query := `INSERT INTO campaign_plans (id, brand_id, brief, strategy, citations) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	return r.db.QueryRowContext(ctx, query, plan.ID, plan.BrandID, brief, strategy, citations).Scan(&plan.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Plan, error) {
	query := `SELECT id, brand_id, brief, strategy, citations, created_at FROM campaign_plans WHERE id = $1`
	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return plan, err
}

func (r *PostgresRepo) List(ctx context.Context, brandID string) ([]Plan, error) {
	query := `SELECT id, brand_id, brief, strategy, citations, created_at FROM campaign_plans WHERE ($1 = '' OR brand_id = $1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (*Plan, error) {
	var plan Plan
	var brief, strategy, citations []byte
	if err := row.Scan(&plan.ID, &plan.BrandID, &brief, &strategy, &citations, &plan.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(brief, &plan.Brief); err != nil {
		return nil, fmt.Errorf("unmarshal brief: %w", err)
	}
	if err := json.Unmarshal(strategy, &plan.Strategy); err != nil {
		return nil, fmt.Errorf("unmarshal strategy: %w", err)
	}
	if err := json.Unmarshal(citations, &plan.Citations); err != nil {
		return nil, fmt.Errorf("unmarshal citations: %w", err)
	}
	return &plan, nil
}
