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

	"github.com/finsim/market-engine/internal/model"
)

const (
	maxTxAttempts  = 8
	baseRetryDelay = 75 * time.Millisecond
	maxRetryDelay  = 1200 * time.Millisecond
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Transactions run at SERIALIZABLE and are retried on serialization failure.
type PostgresStore struct {
	pool *pgxpool.Pool
	pgReader
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, pgReader: pgReader{q: pool}}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{pgReader{q: tx, lock: " FOR UPDATE"}})
	})
}

// withTx runs fn in a serializable transaction, retrying SQLSTATE 40001 with
// exponential backoff. It returns ErrTxConflict once attempts run out.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	retryDelay := baseRetryDelay
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxTxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < maxRetryDelay {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func (s *PostgresStore) UpdatePrice(ctx context.Context, ticker string, fn PriceFunc) (*model.Asset, error) {
	var out *model.Asset
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		a, err := scanAsset(tx.QueryRow(ctx,
			`SELECT ticker, name, type, price::TEXT, market_cap::TEXT
			 FROM assets WHERE ticker = $1 FOR UPDATE`, ticker))
		if err != nil {
			return notFound(err, "asset %s", ticker)
		}
		if price, changed := fn(*a); changed {
			if _, err := tx.Exec(ctx,
				`UPDATE assets SET price = $2::NUMERIC, updated_at = now() WHERE ticker = $1`,
				ticker, price.String()); err != nil {
				return err
			}
			a.Price = price
		}
		out = a
		return nil
	})
	return out, err
}

func (s *PostgresStore) UpsertAsset(ctx context.Context, a *model.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (ticker, name, type, price, market_cap)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (ticker) DO UPDATE
		 SET name = EXCLUDED.name, type = EXCLUDED.type, market_cap = EXCLUDED.market_cap`,
		a.Ticker, a.Name, string(a.Type), a.Price.String(), a.MarketCap.String(),
	)
	return err
}

func (s *PostgresStore) CloseExpiredMarkets(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prediction_markets SET status = $1
		 WHERE status = $2 AND closing_at <= $3`,
		string(model.MarketClosed), string(model.MarketOpen), now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgReader implements Reader. Inside a transaction lock is " FOR UPDATE" so
// rows read for a read-modify-write stay locked until commit.
type pgReader struct {
	q    querier
	lock string
}

func (r pgReader) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var cash, initial string
	err := r.q.QueryRow(ctx,
		`SELECT id, display_name, COALESCE(email, ''), cash::TEXT, initial_cash::TEXT
		 FROM users WHERE id = $1`+r.lock, id).
		Scan(&u.ID, &u.DisplayName, &u.Email, &cash, &initial)
	if err != nil {
		return nil, notFound(err, "user %s", id)
	}
	u.Cash = dec(cash)
	u.InitialCash = dec(initial)
	return &u, nil
}

func (r pgReader) GetAccount(ctx context.Context, owner model.Owner) (*model.Account, error) {
	table, err := accountTable(owner.Kind)
	if err != nil {
		return nil, err
	}
	var cash string
	err = r.q.QueryRow(ctx,
		fmt.Sprintf(`SELECT cash::TEXT FROM %s WHERE id = $1`, table)+r.lock, owner.ID).
		Scan(&cash)
	if err != nil {
		return nil, notFound(err, "%s account %s", owner.Kind, owner.ID)
	}
	return &model.Account{Owner: owner, Cash: dec(cash)}, nil
}

func (r pgReader) GetAsset(ctx context.Context, ticker string) (*model.Asset, error) {
	a, err := scanAsset(r.q.QueryRow(ctx,
		`SELECT ticker, name, type, price::TEXT, market_cap::TEXT
		 FROM assets WHERE ticker = $1`, ticker))
	if err != nil {
		return nil, notFound(err, "asset %s", ticker)
	}
	return a, nil
}

func (r pgReader) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := r.q.Query(ctx,
		`SELECT ticker, name, type, price::TEXT, market_cap::TEXT
		 FROM assets ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

func (r pgReader) GetHolding(ctx context.Context, owner model.Owner, ticker string) (*model.Holding, error) {
	table, col, err := holdingTable(owner.Kind)
	if err != nil {
		return nil, err
	}
	lock := ""
	if r.lock != "" {
		lock = " FOR UPDATE OF h"
	}
	h, err := scanHolding(owner, r.q.QueryRow(ctx, fmt.Sprintf(
		`SELECT h.ticker, COALESCE(a.name, ''), COALESCE(a.type, ''), h.quantity::TEXT, h.avg_cost::TEXT
		 FROM %s h LEFT JOIN assets a ON a.ticker = h.ticker
		 WHERE h.%s = $1 AND h.ticker = $2`, table, col)+lock, owner.ID, ticker))
	if err != nil {
		return nil, notFound(err, "holding %s/%s", owner.ID, ticker)
	}
	return h, nil
}

func (r pgReader) ListHoldings(ctx context.Context, owner model.Owner) ([]model.Holding, error) {
	table, col, err := holdingTable(owner.Kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, fmt.Sprintf(
		`SELECT h.ticker, COALESCE(a.name, ''), COALESCE(a.type, ''), h.quantity::TEXT, h.avg_cost::TEXT
		 FROM %s h LEFT JOIN assets a ON a.ticker = h.ticker
		 WHERE h.%s = $1 ORDER BY h.ticker`, table, col), owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		h, err := scanHolding(owner, rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, *h)
	}
	return holdings, rows.Err()
}

func (r pgReader) ListTransactions(ctx context.Context, owner model.Owner) ([]model.Transaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, seq, type, ticker, name, quantity::TEXT, price::TEXT, value::TEXT, created_at
		 FROM transactions WHERE owner_kind = $1 AND user_id = $2
		 ORDER BY seq DESC`, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		t := model.Transaction{Owner: owner}
		var typ, qty, price, value string
		if err := rows.Scan(&t.ID, &t.Seq, &typ, &t.Ticker, &t.Name, &qty, &price, &value, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = model.TransactionType(typ)
		t.Quantity = dec(qty)
		t.Price = dec(price)
		t.Value = dec(value)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r pgReader) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	c, err := scanCompany(r.q.QueryRow(ctx,
		`SELECT id, name, industry, description, cash::TEXT, total_shares::TEXT, creator_id
		 FROM companies WHERE id = $1`+r.lock, id))
	if err != nil {
		return nil, notFound(err, "company %s", id)
	}
	return c, nil
}

func (r pgReader) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, name, industry, description, cash::TEXT, total_shares::TEXT, creator_id
		 FROM companies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

func (r pgReader) GetMember(ctx context.Context, companyID, userID string) (*model.CompanyMember, error) {
	m := model.CompanyMember{CompanyID: companyID, UserID: userID}
	err := r.q.QueryRow(ctx,
		`SELECT role FROM company_members WHERE company_id = $1 AND user_id = $2`,
		companyID, userID).Scan(&m.Role)
	if err != nil {
		return nil, notFound(err, "member %s of %s", userID, companyID)
	}
	return &m, nil
}

func (r pgReader) ListMembers(ctx context.Context, companyID string) ([]model.CompanyMember, error) {
	rows, err := r.q.Query(ctx,
		`SELECT user_id, role FROM company_members WHERE company_id = $1 ORDER BY user_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.CompanyMember
	for rows.Next() {
		m := model.CompanyMember{CompanyID: companyID}
		if err := rows.Scan(&m.UserID, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r pgReader) GetCompanyShare(ctx context.Context, userID, companyID string) (*model.CompanyShare, error) {
	sh := model.CompanyShare{UserID: userID, CompanyID: companyID}
	var qty string
	err := r.q.QueryRow(ctx,
		`SELECT quantity::TEXT FROM company_shares WHERE user_id = $1 AND company_id = $2`+r.lock,
		userID, companyID).Scan(&qty)
	if err != nil {
		return nil, notFound(err, "shares of %s in %s", userID, companyID)
	}
	sh.Quantity = dec(qty)
	return &sh, nil
}

func (r pgReader) ListSharesByUser(ctx context.Context, userID string) ([]model.CompanyShare, error) {
	rows, err := r.q.Query(ctx,
		`SELECT company_id, quantity::TEXT FROM company_shares WHERE user_id = $1 ORDER BY company_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []model.CompanyShare
	for rows.Next() {
		sh := model.CompanyShare{UserID: userID}
		var qty string
		if err := rows.Scan(&sh.CompanyID, &qty); err != nil {
			return nil, err
		}
		sh.Quantity = dec(qty)
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

func (r pgReader) GetMarket(ctx context.Context, id string) (*model.PredictionMarket, error) {
	m, err := scanMarket(r.q.QueryRow(ctx,
		`SELECT id, title, category, status, closing_at, total_pool::TEXT, creator_id, creator_display_name
		 FROM prediction_markets WHERE id = $1`+r.lock, id))
	if err != nil {
		return nil, notFound(err, "market %s", id)
	}
	rows, err := r.q.Query(ctx,
		`SELECT id, market_id, name, pool::TEXT FROM market_outcomes
		 WHERE market_id = $1 ORDER BY position`+r.lock, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		m.Outcomes = append(m.Outcomes, *o)
	}
	return m, rows.Err()
}

func (r pgReader) ListMarkets(ctx context.Context) ([]model.PredictionMarket, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, title, category, status, closing_at, total_pool::TEXT, creator_id, creator_display_name
		 FROM prediction_markets ORDER BY closing_at, id`)
	if err != nil {
		return nil, err
	}
	var markets []model.PredictionMarket
	index := make(map[string]int)
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[m.ID] = len(markets)
		markets = append(markets, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orows, err := r.q.Query(ctx,
		`SELECT id, market_id, name, pool::TEXT FROM market_outcomes ORDER BY market_id, position`)
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		o, err := scanOutcome(orows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[o.MarketID]; ok {
			markets[i].Outcomes = append(markets[i].Outcomes, *o)
		}
	}
	return markets, orows.Err()
}

// pgTx implements Tx on top of an open pgx transaction.
type pgTx struct {
	pgReader
}

func (t *pgTx) InsertUser(ctx context.Context, u *model.User) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO users (id, display_name, email, cash, initial_cash)
		 VALUES ($1, $2, NULLIF($3, ''), $4::NUMERIC, $5::NUMERIC)`,
		u.ID, u.DisplayName, u.Email, u.Cash.String(), u.InitialCash.String())
	return conflict(err, "user %s", u.ID)
}

func (t *pgTx) SetCash(ctx context.Context, owner model.Owner, cash decimal.Decimal) error {
	table, err := accountTable(owner.Kind)
	if err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET cash = $2::NUMERIC WHERE id = $1`, table),
		owner.ID, cash.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s account %s: %w", owner.Kind, owner.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) PutHolding(ctx context.Context, h *model.Holding) error {
	var err error
	switch h.Owner.Kind {
	case model.OwnerUser:
		_, err = t.q.Exec(ctx,
			`INSERT INTO holdings (user_id, ticker, quantity, avg_cost)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC)
			 ON CONFLICT (user_id, ticker) DO UPDATE
			 SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost`,
			h.Owner.ID, h.Ticker, h.Quantity.String(), h.AvgCost.String())
	case model.OwnerCompany:
		_, err = t.q.Exec(ctx,
			`INSERT INTO company_holdings (company_id, ticker, name, type, quantity, avg_cost)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC)
			 ON CONFLICT (company_id, ticker) DO UPDATE
			 SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost`,
			h.Owner.ID, h.Ticker, h.Name, string(h.Type), h.Quantity.String(), h.AvgCost.String())
	default:
		err = fmt.Errorf("unknown owner kind %q", h.Owner.Kind)
	}
	return err
}

func (t *pgTx) DeleteHolding(ctx context.Context, owner model.Owner, ticker string) error {
	table, col, err := holdingTable(owner.Kind)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND ticker = $2`, table, col),
		owner.ID, ticker)
	return err
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *model.Transaction) error {
	return t.q.QueryRow(ctx,
		`INSERT INTO transactions (id, owner_kind, user_id, type, ticker, name, quantity, price, value, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10)
		 RETURNING seq`,
		tr.ID, string(tr.Owner.Kind), tr.Owner.ID, string(tr.Type), tr.Ticker, tr.Name,
		tr.Quantity.String(), tr.Price.String(), tr.Value.String(), tr.CreatedAt).Scan(&tr.Seq)
}

func (t *pgTx) InsertCompany(ctx context.Context, c *model.Company) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO companies (id, name, industry, description, cash, total_shares, creator_id)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)`,
		c.ID, c.Name, c.Industry, c.Description, c.Cash.String(), c.TotalShares.String(), c.CreatorID)
	return conflict(err, "company %s", c.Name)
}

func (t *pgTx) SetTotalShares(ctx context.Context, companyID string, totalShares decimal.Decimal) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE companies SET total_shares = $2::NUMERIC WHERE id = $1`,
		companyID, totalShares.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("company %s: %w", companyID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertMember(ctx context.Context, m *model.CompanyMember) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO company_members (company_id, user_id, role) VALUES ($1, $2, $3)`,
		m.CompanyID, m.UserID, m.Role)
	return conflict(err, "member %s of %s", m.UserID, m.CompanyID)
}

func (t *pgTx) PutCompanyShare(ctx context.Context, sh *model.CompanyShare) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO company_shares (user_id, company_id, quantity)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (user_id, company_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		sh.UserID, sh.CompanyID, sh.Quantity.String())
	return err
}

func (t *pgTx) InsertMarket(ctx context.Context, m *model.PredictionMarket) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO prediction_markets (id, title, category, status, closing_at, total_pool, creator_id, creator_display_name)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8)`,
		m.ID, m.Title, m.Category, string(m.Status), m.ClosingAt, m.TotalPool.String(),
		m.CreatorID, m.CreatorDisplayName)
	if err != nil {
		return conflict(err, "market %s", m.ID)
	}
	for i, o := range m.Outcomes {
		if _, err := t.q.Exec(ctx,
			`INSERT INTO market_outcomes (id, market_id, name, pool, position)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
			o.ID, m.ID, o.Name, o.Pool.String(), i); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) SetPools(ctx context.Context, m *model.PredictionMarket) error {
	for _, o := range m.Outcomes {
		if _, err := t.q.Exec(ctx,
			`UPDATE market_outcomes SET pool = $3::NUMERIC WHERE id = $1 AND market_id = $2`,
			o.ID, m.ID, o.Pool.String()); err != nil {
			return err
		}
	}
	tag, err := t.q.Exec(ctx,
		`UPDATE prediction_markets SET total_pool = $2::NUMERIC WHERE id = $1`,
		m.ID, m.TotalPool.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertBet(ctx context.Context, b *model.Bet) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO market_bets (id, user_id, outcome_id, amount, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
		b.ID, b.UserID, b.OutcomeID, b.Amount.String(), b.CreatedAt)
	return err
}

// --- helpers ---

func accountTable(kind model.OwnerKind) (string, error) {
	switch kind {
	case model.OwnerUser:
		return "users", nil
	case model.OwnerCompany:
		return "companies", nil
	}
	return "", fmt.Errorf("unknown owner kind %q", kind)
}

func holdingTable(kind model.OwnerKind) (table, ownerCol string, err error) {
	switch kind {
	case model.OwnerUser:
		return "holdings", "user_id", nil
	case model.OwnerCompany:
		return "company_holdings", "company_id", nil
	}
	return "", "", fmt.Errorf("unknown owner kind %q", kind)
}

// dec parses a NUMERIC rendered as text. Postgres always renders a valid
// decimal, so the error is dropped.
func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func scanAsset(row pgx.Row) (*model.Asset, error) {
	var a model.Asset
	var typ, price, mcap string
	if err := row.Scan(&a.Ticker, &a.Name, &typ, &price, &mcap); err != nil {
		return nil, err
	}
	a.Type = model.AssetType(typ)
	a.Price = dec(price)
	a.MarketCap = dec(mcap)
	return &a, nil
}

func scanHolding(owner model.Owner, row pgx.Row) (*model.Holding, error) {
	h := model.Holding{Owner: owner}
	var typ, qty, avg string
	if err := row.Scan(&h.Ticker, &h.Name, &typ, &qty, &avg); err != nil {
		return nil, err
	}
	h.Type = model.AssetType(typ)
	h.Quantity = dec(qty)
	h.AvgCost = dec(avg)
	return &h, nil
}

func scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var cash, shares string
	if err := row.Scan(&c.ID, &c.Name, &c.Industry, &c.Description, &cash, &shares, &c.CreatorID); err != nil {
		return nil, err
	}
	c.Cash = dec(cash)
	c.TotalShares = dec(shares)
	return &c, nil
}

func scanMarket(row pgx.Row) (*model.PredictionMarket, error) {
	var m model.PredictionMarket
	var status, total string
	if err := row.Scan(&m.ID, &m.Title, &m.Category, &status, &m.ClosingAt, &total,
		&m.CreatorID, &m.CreatorDisplayName); err != nil {
		return nil, err
	}
	m.Status = model.MarketStatus(status)
	m.TotalPool = dec(total)
	return &m, nil
}

func scanOutcome(row pgx.Row) (*model.MarketOutcome, error) {
	var o model.MarketOutcome
	var p string
	if err := row.Scan(&o.ID, &o.MarketID, &o.Name, &p); err != nil {
		return nil, err
	}
	o.Pool = dec(p)
	return &o, nil
}

// notFound maps pgx.ErrNoRows to ErrNotFound and annotates the error.
func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// conflict maps unique violations to ErrConflict.
func conflict(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
	}
	return err
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
