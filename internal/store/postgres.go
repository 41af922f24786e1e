package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

// PostgresStore implements Store on PostgreSQL.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const tokenColumns = `id, name, symbol, crop_type, projected_yield, price::TEXT,
	farmer_id, harvest_date, risk_level, location, image,
	total_supply, available_supply, created_at`

const purchaseColumns = `id, holder_id, token_id, symbol, amount,
	price::TEXT, cost::TEXT, timestamp`

func (s *PostgresStore) CreateToken(ctx context.Context, t *model.Token) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (id, name, symbol, crop_type, projected_yield, price,
		                     farmer_id, harvest_date, risk_level, location, image,
		                     total_supply, available_supply, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.Name, t.Symbol, t.CropType, t.ProjectedYield, t.Price.String(),
		t.FarmerID, t.HarvestDate, string(t.RiskLevel), t.Location, t.Image,
		t.TotalSupply, t.AvailableSupply, t.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("token %s: %w", t.ID, ErrConflict)
	}
	return err
}

func (s *PostgresStore) GetToken(ctx context.Context, id string) (*model.Token, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("token %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", id, err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTokens(ctx context.Context) ([]model.Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTokens(rows)
}

func (s *PostgresStore) ListTokensByFarmer(ctx context.Context, farmerID string) ([]model.Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE farmer_id = $1 ORDER BY seq`, farmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTokens(rows)
}

// RecordPurchase decrements supply and inserts the ledger row in one
// transaction. The conditional UPDATE guards against overselling.
func (s *PostgresStore) RecordPurchase(ctx context.Context, p *model.Purchase) (*model.Token, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE tokens SET available_supply = available_supply - $2
		 WHERE id = $1 AND $2 > 0 AND available_supply >= $2
		 RETURNING `+tokenColumns, p.TokenID, p.Amount)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetToken(ctx, p.TokenID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("token %s: %w", p.TokenID, ErrInsufficientSupply)
	}
	if err != nil {
		return nil, fmt.Errorf("update supply %s: %w", p.TokenID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO purchases (id, holder_id, token_id, symbol, amount, price, cost, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		p.ID, p.HolderID, p.TokenID, p.Symbol, p.Amount,
		p.Price.String(), p.Cost.String(), p.Timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetPurchasesByHolder(ctx context.Context, holderID string) ([]model.Purchase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE holder_id = $1 ORDER BY seq`, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPurchases(rows)
}

func (s *PostgresStore) ListPurchasesSince(ctx context.Context, since time.Time) ([]model.Purchase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE timestamp >= $1 ORDER BY timestamp, seq`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPurchases(rows)
}

func (s *PostgresStore) GetHoldings(ctx context.Context, holderID string) ([]model.PortfolioEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.name, t.symbol, t.crop_type, t.projected_yield, t.price::TEXT,
		        t.farmer_id, t.harvest_date, t.risk_level, t.location, t.image,
		        t.total_supply, t.available_supply, t.created_at,
		        h.amount
		 FROM (
		     SELECT token_id, SUM(amount) AS amount, MIN(seq) AS first_seq
		     FROM purchases WHERE holder_id = $1
		     GROUP BY token_id
		 ) h
		 JOIN tokens t ON t.id = h.token_id
		 ORDER BY h.first_seq`, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.PortfolioEntry{}
	for rows.Next() {
		var e model.PortfolioEntry
		var priceS, risk string
		if err := rows.Scan(&e.ID, &e.Name, &e.Symbol, &e.CropType, &e.ProjectedYield, &priceS,
			&e.FarmerID, &e.HarvestDate, &risk, &e.Location, &e.Image,
			&e.TotalSupply, &e.AvailableSupply, &e.CreatedAt,
			&e.Amount); err != nil {
			return nil, err
		}
		e.Price, _ = decimal.NewFromString(priceS)
		e.RiskLevel = model.RiskLevel(risk)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanToken(row pgx.Row) (model.Token, error) {
	var t model.Token
	var priceS, risk string
	err := row.Scan(&t.ID, &t.Name, &t.Symbol, &t.CropType, &t.ProjectedYield, &priceS,
		&t.FarmerID, &t.HarvestDate, &risk, &t.Location, &t.Image,
		&t.TotalSupply, &t.AvailableSupply, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	t.Price, _ = decimal.NewFromString(priceS)
	t.RiskLevel = model.RiskLevel(risk)
	return t, nil
}

func scanTokens(rows pgx.Rows) ([]model.Token, error) {
	tokens := []model.Token{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func scanPurchases(rows pgx.Rows) ([]model.Purchase, error) {
	purchases := []model.Purchase{}
	for rows.Next() {
		var p model.Purchase
		var priceS, costS string

		if err := rows.Scan(&p.ID, &p.HolderID, &p.TokenID, &p.Symbol, &p.Amount,
			&priceS, &costS, &p.Timestamp); err != nil {
			return nil, err
		}

		p.Price, _ = decimal.NewFromString(priceS)
		p.Cost, _ = decimal.NewFromString(costS)

		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
