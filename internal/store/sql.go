package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLStore persists to SQLite or Postgres through sqlx. Queries are written
// with ? placeholders and rebound for the driver.
type SQLStore struct {
	db  *sqlx.DB
	cfg Config
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS recommendations (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	id               TEXT NOT NULL UNIQUE,
	crop_name        TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	quantity         REAL NOT NULL,
	suggested_mandi  TEXT NOT NULL DEFAULT '',
	predicted_price  REAL NOT NULL,
	predicted_profit REAL NOT NULL,
	spoilage_risk    REAL NOT NULL,
	harvest_window   TEXT NOT NULL DEFAULT '',
	model_used       TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS market_prices (
	mandi_name     TEXT NOT NULL,
	crop_name      TEXT NOT NULL,
	price          REAL NOT NULL,
	arrival_volume REAL NOT NULL DEFAULT 0,
	state          TEXT NOT NULL DEFAULT '',
	price_date     TEXT NOT NULL DEFAULT '',
	updated_at     TEXT NOT NULL,
	PRIMARY KEY (mandi_name, crop_name)
);

CREATE TABLE IF NOT EXISTS preservation_actions (
	action_name         TEXT PRIMARY KEY,
	description         TEXT NOT NULL,
	cost_score          INTEGER NOT NULL,
	effectiveness_score INTEGER NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS recommendations (
	seq              BIGSERIAL PRIMARY KEY,
	id               TEXT NOT NULL UNIQUE,
	crop_name        TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	quantity         DOUBLE PRECISION NOT NULL,
	suggested_mandi  TEXT NOT NULL DEFAULT '',
	predicted_price  DOUBLE PRECISION NOT NULL,
	predicted_profit DOUBLE PRECISION NOT NULL,
	spoilage_risk    DOUBLE PRECISION NOT NULL,
	harvest_window   TEXT NOT NULL DEFAULT '',
	model_used       TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS market_prices (
	mandi_name     TEXT NOT NULL,
	crop_name      TEXT NOT NULL,
	price          DOUBLE PRECISION NOT NULL,
	arrival_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
	state          TEXT NOT NULL DEFAULT '',
	price_date     TEXT NOT NULL DEFAULT '',
	updated_at     TEXT NOT NULL,
	PRIMARY KEY (mandi_name, crop_name)
);

CREATE TABLE IF NOT EXISTS preservation_actions (
	action_name         TEXT PRIMARY KEY,
	description         TEXT NOT NULL,
	cost_score          INTEGER NOT NULL,
	effectiveness_score INTEGER NOT NULL
);
`

func NewSQLiteStore(ctx context.Context, dbPath string, cfg Config) (*SQLStore, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteSchema, cfg)
}

func NewPostgresStore(ctx context.Context, dsn string, cfg Config) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresSchema, cfg)
}

func newSQLStore(ctx context.Context, db *sqlx.DB, schema string, cfg Config) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &SQLStore{db: db, cfg: cfg.withDefaults()}
	if err := s.seedActions(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed preservation actions: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) seedActions(ctx context.Context) error {
	for _, a := range DefaultActions {
		if _, err := s.insertAction(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

type recordRow struct {
	ID              string  `db:"id"`
	CropName        string  `db:"crop_name"`
	Region          string  `db:"region"`
	Quantity        float64 `db:"quantity"`
	SuggestedMandi  string  `db:"suggested_mandi"`
	PredictedPrice  float64 `db:"predicted_price"`
	PredictedProfit float64 `db:"predicted_profit"`
	SpoilageRisk    float64 `db:"spoilage_risk"`
	HarvestWindow   string  `db:"harvest_window"`
	ModelUsed       string  `db:"model_used"`
	CreatedAt       string  `db:"created_at"`
}

func (s *SQLStore) SaveRecommendation(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	row := recordRow{
		ID:              rec.ID,
		CropName:        rec.CropName,
		Region:          rec.Region,
		Quantity:        rec.Quantity,
		SuggestedMandi:  rec.SuggestedMandi,
		PredictedPrice:  rec.PredictedPrice,
		PredictedProfit: rec.PredictedProfit,
		SpoilageRisk:    rec.SpoilageRisk,
		HarvestWindow:   rec.HarvestWindow,
		ModelUsed:       rec.ModelUsed,
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO recommendations
		(id, crop_name, region, quantity, suggested_mandi, predicted_price, predicted_profit,
		 spoilage_risk, harvest_window, model_used, created_at)
		VALUES (:id, :crop_name, :region, :quantity, :suggested_mandi, :predicted_price, :predicted_profit,
		 :spoilage_risk, :harvest_window, :model_used, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("save recommendation: %w", err)
	}
	return nil
}

func (s *SQLStore) ListRecommendations(ctx context.Context, limit int) ([]Record, error) {
	var rows []recordRow
	q := s.db.Rebind(`SELECT id, crop_name, region, quantity, suggested_mandi, predicted_price,
		predicted_profit, spoilage_risk, harvest_window, model_used, created_at
		FROM recommendations ORDER BY seq DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, q, normalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		out = append(out, Record{
			ID:              r.ID,
			CropName:        r.CropName,
			Region:          r.Region,
			Quantity:        r.Quantity,
			SuggestedMandi:  r.SuggestedMandi,
			PredictedPrice:  r.PredictedPrice,
			PredictedProfit: r.PredictedProfit,
			SpoilageRisk:    r.SpoilageRisk,
			HarvestWindow:   r.HarvestWindow,
			ModelUsed:       r.ModelUsed,
			CreatedAt:       created,
		})
	}
	return out, nil
}

type priceRow struct {
	MandiName     string  `db:"mandi_name"`
	CropName      string  `db:"crop_name"`
	Price         float64 `db:"price"`
	ArrivalVolume float64 `db:"arrival_volume"`
	State         string  `db:"state"`
	PriceDate     string  `db:"price_date"`
	UpdatedAt     string  `db:"updated_at"`
}

func (r priceRow) toMarketPrice() MarketPrice {
	updated, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return MarketPrice{
		MandiName:     r.MandiName,
		CropName:      r.CropName,
		Price:         r.Price,
		ArrivalVolume: r.ArrivalVolume,
		State:         r.State,
		PriceDate:     r.PriceDate,
		UpdatedAt:     updated,
	}
}

func (s *SQLStore) UpsertMarketPrice(ctx context.Context, p MarketPrice) (MarketPrice, error) {
	p, err := validateMarketPrice(p)
	if err != nil {
		return MarketPrice{}, err
	}
	p.UpdatedAt = s.cfg.Clock().UTC()
	row := priceRow{
		MandiName:     p.MandiName,
		CropName:      p.CropName,
		Price:         p.Price,
		ArrivalVolume: p.ArrivalVolume,
		State:         p.State,
		PriceDate:     p.PriceDate,
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339Nano),
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO market_prices
		(mandi_name, crop_name, price, arrival_volume, state, price_date, updated_at)
		VALUES (:mandi_name, :crop_name, :price, :arrival_volume, :state, :price_date, :updated_at)
		ON CONFLICT (mandi_name, crop_name) DO UPDATE SET
			price = excluded.price,
			arrival_volume = excluded.arrival_volume,
			state = excluded.state,
			price_date = excluded.price_date,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return MarketPrice{}, fmt.Errorf("upsert market price: %w", err)
	}
	return p, nil
}

func (s *SQLStore) ListMarketPrices(ctx context.Context, crop string) ([]MarketPrice, error) {
	crop = normalizeCrop(crop)
	var rows []priceRow
	base := `SELECT mandi_name, crop_name, price, arrival_volume, state, price_date, updated_at FROM market_prices`
	var err error
	if crop == "" {
		err = s.db.SelectContext(ctx, &rows, base+` ORDER BY price DESC, mandi_name, crop_name`)
	} else {
		err = s.db.SelectContext(ctx, &rows, s.db.Rebind(base+` WHERE crop_name = ? ORDER BY price DESC, mandi_name`), crop)
	}
	if err != nil {
		return nil, fmt.Errorf("list market prices: %w", err)
	}
	out := make([]MarketPrice, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMarketPrice())
	}
	return out, nil
}

type actionRow struct {
	Name          string `db:"action_name"`
	Description   string `db:"description"`
	Cost          int    `db:"cost_score"`
	Effectiveness int    `db:"effectiveness_score"`
}

func (s *SQLStore) insertAction(ctx context.Context, a PreservationAction) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO preservation_actions
		(action_name, description, cost_score, effectiveness_score)
		VALUES (:action_name, :description, :cost_score, :effectiveness_score)
		ON CONFLICT (action_name) DO NOTHING`,
		actionRow{Name: a.Name, Description: a.Description, Cost: a.Cost, Effectiveness: a.Effectiveness})
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) CreatePreservationAction(ctx context.Context, a PreservationAction) (PreservationAction, error) {
	a, err := validateAction(a)
	if err != nil {
		return PreservationAction{}, err
	}
	inserted, err := s.insertAction(ctx, a)
	if err != nil {
		return PreservationAction{}, fmt.Errorf("create preservation action: %w", err)
	}
	if !inserted {
		return PreservationAction{}, fmt.Errorf("%w: action %q already exists", ErrInvalid, a.Name)
	}
	a.ValueScore = valueScore(a)
	return a, nil
}

func (s *SQLStore) RankedPreservationActions(ctx context.Context) ([]PreservationAction, error) {
	var rows []actionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT action_name, description, cost_score, effectiveness_score FROM preservation_actions`); err != nil {
		return nil, fmt.Errorf("list preservation actions: %w", err)
	}
	all := make([]PreservationAction, 0, len(rows))
	for _, r := range rows {
		all = append(all, PreservationAction{Name: r.Name, Description: r.Description, Cost: r.Cost, Effectiveness: r.Effectiveness})
	}
	return RankActions(all), nil
}
