package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/model"
)

type holdingKey struct {
	owner  model.Owner
	ticker string
}

type memberKey struct {
	companyID string
	userID    string
}

// memState is one consistent snapshot of every table.
type memState struct {
	users     map[string]model.User
	assets    map[string]model.Asset
	holdings  map[holdingKey]model.Holding
	txs       []model.Transaction
	txSeq     int64
	companies map[string]model.Company
	members   map[memberKey]model.CompanyMember
	shares    map[memberKey]model.CompanyShare
	markets   map[string]model.PredictionMarket
	bets      []model.Bet
}

func newMemState() *memState {
	return &memState{
		users:     make(map[string]model.User),
		assets:    make(map[string]model.Asset),
		holdings:  make(map[holdingKey]model.Holding),
		companies: make(map[string]model.Company),
		members:   make(map[memberKey]model.CompanyMember),
		shares:    make(map[memberKey]model.CompanyShare),
		markets:   make(map[string]model.PredictionMarket),
	}
}

func (st *memState) clone() *memState {
	markets := make(map[string]model.PredictionMarket, len(st.markets))
	for id, m := range st.markets {
		m.Outcomes = slices.Clone(m.Outcomes)
		markets[id] = m
	}
	return &memState{
		users:     maps.Clone(st.users),
		assets:    maps.Clone(st.assets),
		holdings:  maps.Clone(st.holdings),
		txs:       slices.Clone(st.txs),
		txSeq:     st.txSeq,
		companies: maps.Clone(st.companies),
		members:   maps.Clone(st.members),
		shares:    maps.Clone(st.shares),
		markets:   markets,
		bets:      slices.Clone(st.bets),
	}
}

// withAssets and withMarkets return a shallow copy of st with one table
// copied, for single-table writes outside InTx.
func (st *memState) withAssets() *memState {
	next := *st
	next.assets = maps.Clone(st.assets)
	return &next
}

func (st *memState) withMarkets() *memState {
	next := *st
	next.markets = maps.Clone(st.markets)
	return &next
}

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// Transactions are serialized by one lock and write to a private copy of
// the state that replaces the live state only when the transaction succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{memReader{work}}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) UpdatePrice(_ context.Context, ticker string, fn PriceFunc) (*model.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.assets[ticker]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", ticker, ErrNotFound)
	}
	if price, changed := fn(a); changed {
		a.Price = price
		next := s.state.withAssets()
		next.assets[ticker] = a
		s.state = next
	}
	return &a, nil
}

func (s *MemoryStore) UpsertAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *a
	if existing, ok := s.state.assets[a.Ticker]; ok {
		entry.Price = existing.Price
	}
	next := s.state.withAssets()
	next.assets[a.Ticker] = entry
	s.state = next
	return nil
}

func (s *MemoryStore) CloseExpiredMarkets(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.withMarkets()
	closed := 0
	for id, m := range next.markets {
		if m.Status == model.MarketOpen && !m.ClosingAt.After(now) {
			m.Status = model.MarketClosed
			next.markets[id] = m
			closed++
		}
	}
	if closed > 0 {
		s.state = next
	}
	return closed, nil
}

// reader returns a view of the committed state. Committed snapshots are
// never mutated in place, so the view stays consistent after unlocking.
func (s *MemoryStore) reader() memReader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memReader{s.state}
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.reader().GetUser(ctx, id)
}

func (s *MemoryStore) GetAccount(ctx context.Context, owner model.Owner) (*model.Account, error) {
	return s.reader().GetAccount(ctx, owner)
}

func (s *MemoryStore) GetAsset(ctx context.Context, ticker string) (*model.Asset, error) {
	return s.reader().GetAsset(ctx, ticker)
}

func (s *MemoryStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	return s.reader().ListAssets(ctx)
}

func (s *MemoryStore) GetHolding(ctx context.Context, owner model.Owner, ticker string) (*model.Holding, error) {
	return s.reader().GetHolding(ctx, owner, ticker)
}

func (s *MemoryStore) ListHoldings(ctx context.Context, owner model.Owner) ([]model.Holding, error) {
	return s.reader().ListHoldings(ctx, owner)
}

func (s *MemoryStore) ListTransactions(ctx context.Context, owner model.Owner) ([]model.Transaction, error) {
	return s.reader().ListTransactions(ctx, owner)
}

func (s *MemoryStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	return s.reader().GetCompany(ctx, id)
}

func (s *MemoryStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return s.reader().ListCompanies(ctx)
}

func (s *MemoryStore) GetMember(ctx context.Context, companyID, userID string) (*model.CompanyMember, error) {
	return s.reader().GetMember(ctx, companyID, userID)
}

func (s *MemoryStore) ListMembers(ctx context.Context, companyID string) ([]model.CompanyMember, error) {
	return s.reader().ListMembers(ctx, companyID)
}

func (s *MemoryStore) GetCompanyShare(ctx context.Context, userID, companyID string) (*model.CompanyShare, error) {
	return s.reader().GetCompanyShare(ctx, userID, companyID)
}

func (s *MemoryStore) ListSharesByUser(ctx context.Context, userID string) ([]model.CompanyShare, error) {
	return s.reader().ListSharesByUser(ctx, userID)
}

func (s *MemoryStore) GetMarket(ctx context.Context, id string) (*model.PredictionMarket, error) {
	return s.reader().GetMarket(ctx, id)
}

func (s *MemoryStore) ListMarkets(ctx context.Context) ([]model.PredictionMarket, error) {
	return s.reader().ListMarkets(ctx)
}

// memReader reads one snapshot. Every result is a copy.
type memReader struct {
	st *memState
}

func (r memReader) GetUser(_ context.Context, id string) (*model.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &u, nil
}

func (r memReader) GetAccount(_ context.Context, owner model.Owner) (*model.Account, error) {
	switch owner.Kind {
	case model.OwnerUser:
		if u, ok := r.st.users[owner.ID]; ok {
			return &model.Account{Owner: owner, Cash: u.Cash}, nil
		}
	case model.OwnerCompany:
		if c, ok := r.st.companies[owner.ID]; ok {
			return &model.Account{Owner: owner, Cash: c.Cash}, nil
		}
	}
	return nil, fmt.Errorf("%s account %s: %w", owner.Kind, owner.ID, ErrNotFound)
}

func (r memReader) GetAsset(_ context.Context, ticker string) (*model.Asset, error) {
	a, ok := r.st.assets[ticker]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", ticker, ErrNotFound)
	}
	return &a, nil
}

func (r memReader) ListAssets(_ context.Context) ([]model.Asset, error) {
	assets := make([]model.Asset, 0, len(r.st.assets))
	for _, a := range r.st.assets {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Ticker < assets[j].Ticker })
	return assets, nil
}

func (r memReader) GetHolding(_ context.Context, owner model.Owner, ticker string) (*model.Holding, error) {
	h, ok := r.st.holdings[holdingKey{owner, ticker}]
	if !ok {
		return nil, fmt.Errorf("holding %s/%s: %w", owner.ID, ticker, ErrNotFound)
	}
	r.decorate(&h)
	return &h, nil
}

func (r memReader) ListHoldings(_ context.Context, owner model.Owner) ([]model.Holding, error) {
	var holdings []model.Holding
	for k, h := range r.st.holdings {
		if k.owner == owner {
			r.decorate(&h)
			holdings = append(holdings, h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Ticker < holdings[j].Ticker })
	return holdings, nil
}

// decorate fills name and type from the catalogue, like the SQL join does.
func (r memReader) decorate(h *model.Holding) {
	if a, ok := r.st.assets[h.Ticker]; ok {
		h.Name = a.Name
		h.Type = a.Type
	}
}

func (r memReader) ListTransactions(_ context.Context, owner model.Owner) ([]model.Transaction, error) {
	var result []model.Transaction
	for i := len(r.st.txs) - 1; i >= 0; i-- {
		if r.st.txs[i].Owner == owner {
			result = append(result, r.st.txs[i])
		}
	}
	return result, nil
}

func (r memReader) GetCompany(_ context.Context, id string) (*model.Company, error) {
	c, ok := r.st.companies[id]
	if !ok {
		return nil, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (r memReader) ListCompanies(_ context.Context) ([]model.Company, error) {
	companies := make([]model.Company, 0, len(r.st.companies))
	for _, c := range r.st.companies {
		companies = append(companies, c)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].Name < companies[j].Name })
	return companies, nil
}

func (r memReader) GetMember(_ context.Context, companyID, userID string) (*model.CompanyMember, error) {
	m, ok := r.st.members[memberKey{companyID, userID}]
	if !ok {
		return nil, fmt.Errorf("member %s of %s: %w", userID, companyID, ErrNotFound)
	}
	return &m, nil
}

func (r memReader) ListMembers(_ context.Context, companyID string) ([]model.CompanyMember, error) {
	var members []model.CompanyMember
	for k, m := range r.st.members {
		if k.companyID == companyID {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

func (r memReader) GetCompanyShare(_ context.Context, userID, companyID string) (*model.CompanyShare, error) {
	sh, ok := r.st.shares[memberKey{companyID, userID}]
	if !ok {
		return nil, fmt.Errorf("shares of %s in %s: %w", userID, companyID, ErrNotFound)
	}
	return &sh, nil
}

func (r memReader) ListSharesByUser(_ context.Context, userID string) ([]model.CompanyShare, error) {
	var shares []model.CompanyShare
	for k, sh := range r.st.shares {
		if k.userID == userID {
			shares = append(shares, sh)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].CompanyID < shares[j].CompanyID })
	return shares, nil
}

func (r memReader) GetMarket(_ context.Context, id string) (*model.PredictionMarket, error) {
	m, ok := r.st.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", id, ErrNotFound)
	}
	m.Outcomes = slices.Clone(m.Outcomes)
	return &m, nil
}

func (r memReader) ListMarkets(_ context.Context) ([]model.PredictionMarket, error) {
	markets := make([]model.PredictionMarket, 0, len(r.st.markets))
	for _, m := range r.st.markets {
		m.Outcomes = slices.Clone(m.Outcomes)
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool {
		if !markets[i].ClosingAt.Equal(markets[j].ClosingAt) {
			return markets[i].ClosingAt.Before(markets[j].ClosingAt)
		}
		return markets[i].ID < markets[j].ID
	})
	return markets, nil
}

// memTx writes to the private snapshot owned by one InTx call.
type memTx struct {
	memReader
}

func (t *memTx) InsertUser(_ context.Context, u *model.User) error {
	if _, ok := t.st.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrConflict)
	}
	if u.Email != "" {
		for _, existing := range t.st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return fmt.Errorf("email %s: %w", u.Email, ErrConflict)
			}
		}
	}
	t.st.users[u.ID] = *u
	return nil
}

func (t *memTx) SetCash(_ context.Context, owner model.Owner, cash decimal.Decimal) error {
	switch owner.Kind {
	case model.OwnerUser:
		if u, ok := t.st.users[owner.ID]; ok {
			u.Cash = cash
			t.st.users[owner.ID] = u
			return nil
		}
	case model.OwnerCompany:
		if c, ok := t.st.companies[owner.ID]; ok {
			c.Cash = cash
			t.st.companies[owner.ID] = c
			return nil
		}
	}
	return fmt.Errorf("%s account %s: %w", owner.Kind, owner.ID, ErrNotFound)
}

func (t *memTx) PutHolding(_ context.Context, h *model.Holding) error {
	t.st.holdings[holdingKey{h.Owner, h.Ticker}] = *h
	return nil
}

func (t *memTx) DeleteHolding(_ context.Context, owner model.Owner, ticker string) error {
	delete(t.st.holdings, holdingKey{owner, ticker})
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *model.Transaction) error {
	t.st.txSeq++
	tr.Seq = t.st.txSeq
	t.st.txs = append(t.st.txs, *tr)
	return nil
}

func (t *memTx) InsertCompany(_ context.Context, c *model.Company) error {
	for _, existing := range t.st.companies {
		if existing.ID == c.ID || existing.Name == c.Name {
			return fmt.Errorf("company %s: %w", c.Name, ErrConflict)
		}
	}
	t.st.companies[c.ID] = *c
	return nil
}

func (t *memTx) SetTotalShares(_ context.Context, companyID string, totalShares decimal.Decimal) error {
	c, ok := t.st.companies[companyID]
	if !ok {
		return fmt.Errorf("company %s: %w", companyID, ErrNotFound)
	}
	c.TotalShares = totalShares
	t.st.companies[companyID] = c
	return nil
}

func (t *memTx) InsertMember(_ context.Context, m *model.CompanyMember) error {
	k := memberKey{m.CompanyID, m.UserID}
	if _, ok := t.st.members[k]; ok {
		return fmt.Errorf("member %s of %s: %w", m.UserID, m.CompanyID, ErrConflict)
	}
	t.st.members[k] = *m
	return nil
}

func (t *memTx) PutCompanyShare(_ context.Context, sh *model.CompanyShare) error {
	t.st.shares[memberKey{sh.CompanyID, sh.UserID}] = *sh
	return nil
}

func (t *memTx) InsertMarket(_ context.Context, m *model.PredictionMarket) error {
	if _, ok := t.st.markets[m.ID]; ok {
		return fmt.Errorf("market %s: %w", m.ID, ErrConflict)
	}
	next := *m
	next.Outcomes = slices.Clone(m.Outcomes)
	t.st.markets[m.ID] = next
	return nil
}

func (t *memTx) SetPools(_ context.Context, m *model.PredictionMarket) error {
	existing, ok := t.st.markets[m.ID]
	if !ok {
		return fmt.Errorf("market %s: %w", m.ID, ErrNotFound)
	}
	pools := make(map[string]decimal.Decimal, len(m.Outcomes))
	for _, o := range m.Outcomes {
		pools[o.ID] = o.Pool
	}
	for i, o := range existing.Outcomes {
		if p, ok := pools[o.ID]; ok {
			existing.Outcomes[i].Pool = p
		}
	}
	existing.TotalPool = m.TotalPool
	t.st.markets[m.ID] = existing
	return nil
}

func (t *memTx) InsertBet(_ context.Context, b *model.Bet) error {
	t.st.bets = append(t.st.bets, *b)
	return nil
}
