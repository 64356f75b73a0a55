package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCardNotFound is returned when no printing matches the query.
var ErrCardNotFound = errors.New("card not found")

// CardRecord is one row of the cards table: a printing identified by
// name, collector number, and set code.
type CardRecord struct {
	Name            string
	CollectorNumber string
	SetCode         string
	SetName         string
	IsTwoSided      bool
}

// CardRepository persists the ingested card catalog.
type CardRepository struct {
	db *pgxpool.Pool
}

// NewCardRepository creates a card repository backed by the given pool.
func NewCardRepository(db *pgxpool.Pool) *CardRepository {
	return &CardRepository{db: db}
}

// Exists reports whether the printing is already in the catalog.
func (r *CardRepository) Exists(ctx context.Context, name, collectorNumber, setCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM cards WHERE name = $1 AND collector_number = $2 AND set_code = $3)`,
		name, collectorNumber, setCode,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check card %s #%s (%s): %w", name, collectorNumber, setCode, err)
	}
	return exists, nil
}

// Insert adds a printing to the catalog.
func (r *CardRepository) Insert(ctx context.Context, card CardRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cards (name, collector_number, set_code, set_name, is_two_sided)
		 VALUES ($1, $2, $3, $4, $5)`,
		card.Name, card.CollectorNumber, card.SetCode, card.SetName, card.IsTwoSided,
	)
	if err != nil {
		return fmt.Errorf("insert card %s #%s (%s): %w", card.Name, card.CollectorNumber, card.SetCode, err)
	}
	return nil
}

// GetPrinting returns the printing identified by set code and collector
// number.
func (r *CardRepository) GetPrinting(ctx context.Context, setCode, collectorNumber string) (CardRecord, error) {
	var c CardRecord
	err := r.db.QueryRow(ctx,
		`SELECT name, collector_number, set_code, set_name, is_two_sided
		 FROM cards WHERE set_code = $1 AND collector_number = $2`,
		setCode, collectorNumber,
	).Scan(&c.Name, &c.CollectorNumber, &c.SetCode, &c.SetName, &c.IsTwoSided)
	if errors.Is(err, pgx.ErrNoRows) {
		return CardRecord{}, ErrCardNotFound
	}
	if err != nil {
		return CardRecord{}, fmt.Errorf("query card #%s (%s): %w", collectorNumber, setCode, err)
	}
	return c, nil
}

// SearchByName returns printings whose name matches the given pattern,
// optionally restricted to one set, newest sets first, capped at limit.
func (r *CardRepository) SearchByName(ctx context.Context, name, setCode string, limit int) ([]CardRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT name, collector_number, set_code, set_name, is_two_sided
		 FROM cards WHERE name ILIKE '%' || $1 || '%' AND ($2 = '' OR set_code = $2)
		 ORDER BY set_code DESC, collector_number LIMIT $3`,
		name, setCode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search cards %q: %w", name, err)
	}
	defer rows.Close()

	var cards []CardRecord
	for rows.Next() {
		var c CardRecord
		if err := rows.Scan(&c.Name, &c.CollectorNumber, &c.SetCode, &c.SetName, &c.IsTwoSided); err != nil {
			return nil, fmt.Errorf("scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card rows: %w", err)
	}
	return cards, nil
}
