package postgres

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

type prepTimeRepository struct {
	db DB
}

func NewPrepTimeRepository(db DB) interfaces.PrepTimeRepository {
	return &prepTimeRepository{db: db}
}

func (r *prepTimeRepository) ListPrepTimes(ctx context.Context) ([]domain.PrepTimeEntry, error) {
	query := `
		SELECT id, name, prep_time_minutes
		FROM products
		WHERE prep_time_minutes IS NOT NULL
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var entries []domain.PrepTimeEntry
	for rows.Next() {
		var e domain.PrepTimeEntry
		if err := rows.Scan(&e.ProductID, &e.Name, &e.Minutes); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	return entries, nil
}
