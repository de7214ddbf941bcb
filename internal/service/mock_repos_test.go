package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/YASH5398/dlx-sub003/config"
	"github.com/YASH5398/dlx-sub003/internal/model"
	"github.com/YASH5398/dlx-sub003/internal/repository"
	pkgerrors "github.com/YASH5398/dlx-sub003/pkg/errors"
)

var errMockStore = errors.New("mock store down")

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // key: user_id
	err   error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if m.err != nil {
		return m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.ReferralCode, user.ReferralCode) {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = "user-" + user.Email
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByReferralCode(_ context.Context, code string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.ReferralCode, code) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) IncrementReferralCounters(_ context.Context, userID string, delta int) error {
	if m.err != nil {
		return m.err
	}
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.ReferralCount += delta
	u.ActiveReferrals += delta
	return nil
}

func (m *mockUserRepo) SetReferrerCode(_ context.Context, userID, code string) error {
	if m.err != nil {
		return m.err
	}
	if u, ok := m.users[userID]; ok {
		u.ReferrerCode = &code
	}
	return nil
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

// ── Mock AffiliateRepository ──

type mockAffiliateRepo struct {
	affiliates map[string]*model.Affiliate // key: owner_id
	err        error
}

func newMockAffiliateRepo() *mockAffiliateRepo {
	return &mockAffiliateRepo{affiliates: make(map[string]*model.Affiliate)}
}

func (m *mockAffiliateRepo) Create(_ context.Context, affiliate *model.Affiliate) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.affiliates[affiliate.OwnerID]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.affiliates[affiliate.OwnerID] = affiliate
	return nil
}

func (m *mockAffiliateRepo) GetByOwner(_ context.Context, ownerID string) (*model.Affiliate, error) {
	if m.err != nil {
		return nil, m.err
	}
	if a, ok := m.affiliates[ownerID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAffiliateRepo) FindBySlug(_ context.Context, slug string) (*model.Affiliate, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.affiliates {
		if a.SlugValue() == slug {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAffiliateRepo) MergeSlug(_ context.Context, ownerID, slug string, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	a, ok := m.affiliates[ownerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Slug = &slug
	a.UpdatedAt = at
	return nil
}

func (m *mockAffiliateRepo) Increment(_ context.Context, ownerID string, counter repository.AffiliateCounter, delta int64) error {
	if m.err != nil {
		return m.err
	}
	a, ok := m.affiliates[ownerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	switch counter {
	case repository.CounterClicks:
		a.Clicks += delta
	case repository.CounterInvitesSent:
		a.InvitesSent += delta
	}
	return nil
}

func (m *mockAffiliateRepo) TransitionStatus(_ context.Context, ownerID, from, to, reviewerID string, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	a, ok := m.affiliates[ownerID]
	if !ok || a.ApprovalStatus != from {
		return pkgerrors.ErrOptimisticLock
	}
	a.ApprovalStatus = to
	a.ReviewedBy = &reviewerID
	a.ReviewedAt = &at
	a.UpdatedAt = at
	return nil
}

func (m *mockAffiliateRepo) List(_ context.Context, status string, offset, limit int) ([]model.Affiliate, int64, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var all []model.Affiliate
	for _, a := range m.affiliates {
		if status == "" || a.ApprovalStatus == status {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if offset > len(all) {
		return []model.Affiliate{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock SlugClaimRepository ──

type mockSlugClaimRepo struct {
	claims map[string]*model.SlugClaim // key: slug
	err    error
}

func newMockSlugClaimRepo() *mockSlugClaimRepo {
	return &mockSlugClaimRepo{claims: make(map[string]*model.SlugClaim)}
}

func (m *mockSlugClaimRepo) Create(_ context.Context, claim *model.SlugClaim) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.claims[claim.Slug]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.claims[claim.Slug] = claim
	return nil
}

func (m *mockSlugClaimRepo) GetBySlugForUpdate(_ context.Context, slug string) (*model.SlugClaim, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.claims[slug]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSlugClaimRepo) ReleaseOwner(_ context.Context, ownerID, keep string) error {
	if m.err != nil {
		return m.err
	}
	for slug, c := range m.claims {
		if c.OwnerID == ownerID && slug != keep {
			delete(m.claims, slug)
		}
	}
	return nil
}

// ── Mock ReferralEventRepository ──

type mockReferralEventRepo struct {
	events map[string]*model.ReferralEvent // key: event_id
	err    error
	// beforeActivate 在条件更新前执行，用于模拟并发写入
	beforeActivate func()
}

func newMockReferralEventRepo() *mockReferralEventRepo {
	return &mockReferralEventRepo{events: make(map[string]*model.ReferralEvent)}
}

func (m *mockReferralEventRepo) Create(_ context.Context, event *model.ReferralEvent) error {
	if m.err != nil {
		return m.err
	}
	for _, e := range m.events {
		if e.ReferredUserID == event.ReferredUserID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.events[event.EventID] = event
	return nil
}

func (m *mockReferralEventRepo) GetByID(_ context.Context, id string) (*model.ReferralEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralEventRepo) GetByReferredUser(_ context.Context, referredUserID string) (*model.ReferralEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, e := range m.events {
		if e.ReferredUserID == referredUserID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralEventRepo) ListByReferrer(_ context.Context, referrerID string) ([]model.ReferralEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make([]model.ReferralEvent, 0)
	for _, e := range m.events {
		if e.ReferrerID == referrerID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.After(result[j].JoinedAt) })
	return result, nil
}

func (m *mockReferralEventRepo) Activate(_ context.Context, eventID string, commission decimal.Decimal, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	if m.beforeActivate != nil {
		m.beforeActivate()
	}
	e, ok := m.events[eventID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if e.CommissionAmount.GreaterThan(commission) {
		return pkgerrors.ErrOptimisticLock
	}
	e.Status = model.ReferralStatusActive
	e.CommissionAmount = commission
	if e.ActivatedAt == nil {
		e.ActivatedAt = &at
	}
	return nil
}

// countByReferrer 测试断言用
func (m *mockReferralEventRepo) countByReferrer(referrerID string) int {
	n := 0
	for _, e := range m.events {
		if e.ReferrerID == referrerID {
			n++
		}
	}
	return n
}

// ── Mock LedgerCache / TokenBlacklist ──

type mockLedgerCache struct {
	mu          sync.Mutex
	clicks      map[string]bool
	summaries   map[string][]byte
	blacklisted map[string]time.Duration
	err         error
}

func newMockLedgerCache() *mockLedgerCache {
	return &mockLedgerCache{
		clicks:      make(map[string]bool),
		summaries:   make(map[string][]byte),
		blacklisted: make(map[string]time.Duration),
	}
}

func (m *mockLedgerCache) MarkClickOnce(_ context.Context, referrerID, visitorKey string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := referrerID + ":" + visitorKey
	if m.clicks[key] {
		return false, nil
	}
	m.clicks[key] = true
	return true, nil
}

func (m *mockLedgerCache) GetSummary(_ context.Context, referrerID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.summaries[referrerID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return b, nil
}

func (m *mockLedgerCache) SetSummary(_ context.Context, referrerID string, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.summaries[referrerID] = payload
	return nil
}

func (m *mockLedgerCache) InvalidateSummary(_ context.Context, referrerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries, referrerID)
	return nil
}

func (m *mockLedgerCache) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.blacklisted[jti] = ttl
	return nil
}

// ── 测试辅助 ──

type testRepos struct {
	repo      *repository.Repository
	user      *mockUserRepo
	affiliate *mockAffiliateRepo
	claim     *mockSlugClaimRepo
	event     *mockReferralEventRepo
}

func newTestRepos() *testRepos {
	r := &testRepos{
		user:      newMockUserRepo(),
		affiliate: newMockAffiliateRepo(),
		claim:     newMockSlugClaimRepo(),
		event:     newMockReferralEventRepo(),
	}
	r.repo = &repository.Repository{
		User:          r.user,
		Affiliate:     r.affiliate,
		SlugClaim:     r.claim,
		ReferralEvent: r.event,
	}
	return r
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-for-unit-tests",
			AccessTokenTTL: 15 * time.Minute,
			Issuer:         "digilinex-test",
		},
		Referral: config.ReferralConfig{
			LinkBaseURL:       "https://digilinex.com",
			SignupPath:        "/signup",
			CodePrefix:        "DLX",
			ClickDedupeWindow: 24 * time.Hour,
			SummaryCacheTTL:   time.Minute,
		},
	}
}

// seedUser 预置用户
func (r *testRepos) seedUser(id, code string) *model.User {
	u := &model.User{
		UserID:       id,
		Email:        id + "@test.com",
		DisplayName:  "User " + id,
		Role:         model.RoleUser,
		ReferralCode: code,
	}
	r.user.users[id] = u
	return u
}

// seedAffiliate 预置推广员
func (r *testRepos) seedAffiliate(ownerID, status string) *model.Affiliate {
	a := &model.Affiliate{
		OwnerID:        ownerID,
		ApprovalStatus: status,
		Timestamps:     model.Timestamps{CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	r.affiliate.affiliates[ownerID] = a
	return a
}
