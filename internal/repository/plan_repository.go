package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush-jadaun/livekitagent/internal/models"
)

var ErrPlanNotFound = errors.New("plan not found")

// PlanRepository reads the static plan catalog.
type PlanRepository struct {
	pool *pgxpool.Pool
}

func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

func (r *PlanRepository) List(ctx context.Context) ([]models.Plan, error) {
	const query = `
		SELECT id, name, monthly_price, session_limit, razorpay_plan_id, created_at
		FROM plans
		ORDER BY monthly_price ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.MonthlyPrice, &p.SessionLimit, &p.RazorpayPlanID, &p.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (models.Plan, error) {
	const query = `
		SELECT id, name, monthly_price, session_limit, razorpay_plan_id, created_at
		FROM plans
		WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var p models.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.MonthlyPrice, &p.SessionLimit, &p.RazorpayPlanID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Plan{}, ErrPlanNotFound
		}
		return models.Plan{}, err
	}
	return p, nil
}
