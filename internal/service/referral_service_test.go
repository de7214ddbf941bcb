package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/YASH5398/dlx-sub003/internal/dto"
	"github.com/YASH5398/dlx-sub003/internal/metrics"
	"github.com/YASH5398/dlx-sub003/internal/model"
)

// ── 测试辅助 ──

func setupTestReferralService() (*referralService, *testRepos, *mockLedgerCache) {
	repos := newTestRepos()
	cache := newMockLedgerCache()
	svc := NewReferralService(testConfig(), repos.repo, cache, metrics.NewLedger(prometheus.NewRegistry()), zap.NewNop())
	return svc.(*referralService), repos, cache
}

// seedApproved 预置已通过审核的推广员
func seedApproved(repos *testRepos, id, code string) {
	repos.seedUser(id, code)
	repos.seedAffiliate(id, model.ApprovalApproved)
}

// ── ResolveReferralLink 测试 ──

func TestReferralService_ResolveReferralLink(t *testing.T) {
	svc, _, _ := setupTestReferralService()

	if got := svc.ResolveReferralLink("custom", "DLX1234"); got != "https://digilinex.com/signup?ref=custom" {
		t.Errorf("期望使用自定义短名，实际=%s", got)
	}
	if got := svc.ResolveReferralLink("", "DLX1234"); got != "https://digilinex.com/signup?ref=DLX1234" {
		t.Errorf("期望回退到推荐码，实际=%s", got)
	}
}

// ── Apply / Review 测试 ──

func TestReferralService_Apply_CreatesPending(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("u1", "DLXAAAAAA")

	result, err := svc.Apply(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Apply 应成功: %v", err)
	}
	if result.ApprovalStatus != model.ApprovalPending {
		t.Errorf("期望 pending，实际=%s", result.ApprovalStatus)
	}
	if result.ReferralLink != "https://digilinex.com/signup?ref=DLXAAAAAA" {
		t.Errorf("推广链接不正确: %s", result.ReferralLink)
	}
}

func TestReferralService_Apply_Idempotent(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "u1", "DLXAAAAAA")

	result, err := svc.Apply(context.Background(), "u1")
	if err != nil {
		t.Fatalf("重复 Apply 应成功: %v", err)
	}
	if result.ApprovalStatus != model.ApprovalApproved {
		t.Errorf("重复申请不应改变状态，实际=%s", result.ApprovalStatus)
	}
}

func TestReferralService_Apply_Unauthenticated(t *testing.T) {
	svc, _, _ := setupTestReferralService()

	_, err := svc.Apply(context.Background(), "")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("期望 ErrNotAuthenticated，实际: %v", err)
	}
}

func TestReferralService_Review_Approve(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("u1", "DLXAAAAAA")
	repos.seedAffiliate("u1", model.ApprovalPending)

	result, err := svc.Review(context.Background(), "u1", model.ApprovalApproved, "admin-1")
	if err != nil {
		t.Fatalf("Review 应成功: %v", err)
	}
	if result.ApprovalStatus != model.ApprovalApproved {
		t.Errorf("期望 approved，实际=%s", result.ApprovalStatus)
	}
	if result.ReviewedAt == "" {
		t.Error("ReviewedAt 不应为空")
	}
	stored := repos.affiliate.affiliates["u1"]
	if stored.ReviewedBy == nil || *stored.ReviewedBy != "admin-1" {
		t.Error("应记录审核人")
	}
}

func TestReferralService_Review_NotPending(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "u1", "DLXAAAAAA")

	_, err := svc.Review(context.Background(), "u1", model.ApprovalRejected, "admin-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
}

func TestReferralService_Review_InvalidDecision(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("u1", "DLXAAAAAA")
	repos.seedAffiliate("u1", model.ApprovalPending)

	_, err := svc.Review(context.Background(), "u1", "maybe", "admin-1")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("期望 ErrInvalidFormat，实际: %v", err)
	}
}

func TestReferralService_Review_NotFound(t *testing.T) {
	svc, _, _ := setupTestReferralService()

	_, err := svc.Review(context.Background(), "ghost", model.ApprovalApproved, "admin-1")
	if !errors.Is(err, ErrAffiliateNotFound) {
		t.Errorf("期望 ErrAffiliateNotFound，实际: %v", err)
	}
}

// ── ClaimSlug 测试 ──

func TestReferralService_ClaimSlug_Success(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "u1", "DLXAAAAAA")

	result, err := svc.ClaimSlug(context.Background(), "u1", "my-link")
	if err != nil {
		t.Fatalf("ClaimSlug 应成功: %v", err)
	}
	if result.Slug != "my-link" {
		t.Errorf("期望 slug=my-link，实际=%s", result.Slug)
	}
	if result.ReferralLink != "https://digilinex.com/signup?ref=my-link" {
		t.Errorf("推广链接应使用短名，实际=%s", result.ReferralLink)
	}
	if claim, ok := repos.claim.claims["my-link"]; !ok || claim.OwnerID != "u1" {
		t.Error("应写入短名占用记录")
	}
	if got := testutil.ToFloat64(svc.metrics.SlugClaims.WithLabelValues(metrics.ResultOK)); got != 1 {
		t.Errorf("期望 ok 计数=1，实际=%v", got)
	}
}

func TestReferralService_ClaimSlug_TakenByOther(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "userA", "DLXAAAAAA")
	seedApproved(repos, "userB", "DLXBBBBBB")

	if _, err := svc.ClaimSlug(context.Background(), "userA", "taken"); err != nil {
		t.Fatalf("userA ClaimSlug 应成功: %v", err)
	}
	_, err := svc.ClaimSlug(context.Background(), "userB", "taken")
	if !errors.Is(err, ErrSlugTaken) {
		t.Errorf("期望 ErrSlugTaken，实际: %v", err)
	}
	if repos.affiliate.affiliates["userB"].Slug != nil {
		t.Error("失败的占用不应修改 userB 的短名")
	}
}

func TestReferralService_ClaimSlug_ShadowsReferralCode(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "alice", "DLXABC123")
	seedApproved(repos, "bob", "DLXBBBBBB")

	_, err := svc.ClaimSlug(context.Background(), "bob", "dlxabc123")
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("与他人推荐码同名的短名期望 ErrSlugTaken，实际: %v", err)
	}
	if repos.affiliate.affiliates["bob"].Slug != nil {
		t.Error("被拒绝的短名不应写入 bob")
	}
	if _, ok := repos.claim.claims["dlxabc123"]; ok {
		t.Error("被拒绝的短名不应写入占用表")
	}

	repos.seedUser("newbie", "DLXNEWNEW")
	result, err := svc.AttributeSignup(context.Background(), "dlxabc123", "newbie", "newbie@test.com", "Newbie")
	if err != nil || result.ReferrerID != "alice" {
		t.Errorf("推荐码链接应归属到 alice: result=%+v err=%v", result, err)
	}
}

func TestReferralService_ClaimSlug_OwnReferralCode(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "alice", "DLXABC123")

	if _, err := svc.ClaimSlug(context.Background(), "alice", "dlxabc123"); err != nil {
		t.Errorf("以本人推荐码作为短名应成功: %v", err)
	}
}

func TestReferralService_ClaimSlug_SameOwnerTwice(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "userA", "DLXAAAAAA")

	for i := 0; i < 2; i++ {
		if _, err := svc.ClaimSlug(context.Background(), "userA", "taken"); err != nil {
			t.Fatalf("第 %d 次 ClaimSlug 应成功: %v", i+1, err)
		}
	}
	if len(repos.claim.claims) != 1 {
		t.Errorf("期望 1 条占用记录，实际=%d", len(repos.claim.claims))
	}
}

func TestReferralService_ClaimSlug_ReleasesPrevious(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "userA", "DLXAAAAAA")
	seedApproved(repos, "userB", "DLXBBBBBB")

	_, _ = svc.ClaimSlug(context.Background(), "userA", "first")
	if _, err := svc.ClaimSlug(context.Background(), "userA", "second"); err != nil {
		t.Fatalf("更换短名应成功: %v", err)
	}
	if _, ok := repos.claim.claims["first"]; ok {
		t.Error("旧短名应被释放")
	}
	if _, err := svc.ClaimSlug(context.Background(), "userB", "first"); err != nil {
		t.Errorf("已释放的短名应可被他人占用: %v", err)
	}
}

func TestReferralService_ClaimSlug_FailFast(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	// 存储不可用时，认证与格式错误仍先于存储调用返回
	repos.affiliate.err = errMockStore
	repos.claim.err = errMockStore

	if _, err := svc.ClaimSlug(context.Background(), "", "my-link"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("期望 ErrNotAuthenticated，实际: %v", err)
	}
	if _, err := svc.ClaimSlug(context.Background(), "u1", "Bad Slug"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("期望 ErrInvalidFormat，实际: %v", err)
	}
}

func TestReferralService_ClaimSlug_NotApproved(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("u1", "DLXAAAAAA")
	repos.seedAffiliate("u1", model.ApprovalPending)

	_, err := svc.ClaimSlug(context.Background(), "u1", "my-link")
	if !errors.Is(err, ErrAffiliateNotApproved) {
		t.Errorf("期望 ErrAffiliateNotApproved，实际: %v", err)
	}

	repos.seedUser("u2", "DLXBBBBBB")
	_, err = svc.ClaimSlug(context.Background(), "u2", "my-link")
	if !errors.Is(err, ErrAffiliateNotFound) {
		t.Errorf("期望 ErrAffiliateNotFound，实际: %v", err)
	}
}

func TestReferralService_ClaimSlug_StoreError(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "u1", "DLXAAAAAA")
	repos.claim.err = errMockStore

	_, err := svc.ClaimSlug(context.Background(), "u1", "my-link")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("期望 ErrStoreUnavailable，实际: %v", err)
	}
	if !errors.Is(err, errMockStore) {
		t.Error("应保留原始存储错误")
	}
}

// ── AttributeSignup 测试 ──

func TestReferralService_AttributeSignup_UnknownCode(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("new-user", "DLXNEWNEW")

	result, err := svc.AttributeSignup(context.Background(), "DLX1234", "new-user", "new@test.com", "New")
	if err != nil {
		t.Fatalf("未知推荐码应为无操作成功: %v", err)
	}
	if result.Attributed {
		t.Error("未知推荐码不应归属")
	}
	if len(repos.event.events) != 0 {
		t.Errorf("不应创建推荐记录，实际=%d", len(repos.event.events))
	}
}

func TestReferralService_AttributeSignup_KnownCode(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	referrer := repos.seedUser("R", "DLX1234")
	referrer.ReferralCount = 4
	referrer.ActiveReferrals = 2
	repos.seedUser("new-user", "DLXNEWNEW")

	result, err := svc.AttributeSignup(context.Background(), "DLX1234", "new-user", "new@test.com", "New")
	if err != nil {
		t.Fatalf("AttributeSignup 应成功: %v", err)
	}
	if !result.Attributed || result.ReferrerID != "R" {
		t.Errorf("期望归属到 R，实际=%+v", result)
	}
	if referrer.ReferralCount != 5 || referrer.ActiveReferrals != 3 {
		t.Errorf("计数应各 +1，实际 count=%d active=%d", referrer.ReferralCount, referrer.ActiveReferrals)
	}
	if n := repos.event.countByReferrer("R"); n != 1 {
		t.Fatalf("期望 1 条推荐记录，实际=%d", n)
	}
	event := repos.event.events[result.EventID]
	if event.Status != model.ReferralStatusJoined || !event.CommissionAmount.IsZero() || event.ReferredUserID != "new-user" {
		t.Errorf("推荐记录不正确: %+v", event)
	}
	if rc := repos.user.users["new-user"].ReferrerCode; rc == nil || *rc != "DLX1234" {
		t.Error("应回填新用户的 referrer_code")
	}
}

func TestReferralService_AttributeSignup_CaseInsensitiveCode(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("R", "DLX1234")
	repos.seedUser("new-user", "DLXNEWNEW")

	result, err := svc.AttributeSignup(context.Background(), "dlx1234", "new-user", "new@test.com", "New")
	if err != nil || !result.Attributed {
		t.Errorf("推荐码应不区分大小写: result=%+v err=%v", result, err)
	}
}

func TestReferralService_AttributeSignup_BySlug(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")
	slug := "rockstar"
	repos.affiliate.affiliates["R"].Slug = &slug
	repos.seedUser("new-user", "DLXNEWNEW")

	result, err := svc.AttributeSignup(context.Background(), "rockstar", "new-user", "new@test.com", "New")
	if err != nil {
		t.Fatalf("AttributeSignup 应成功: %v", err)
	}
	if !result.Attributed || result.ReferrerID != "R" {
		t.Errorf("短名链接应归属到 R，实际=%+v", result)
	}
}

func TestReferralService_AttributeSignup_Idempotent(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	referrer := repos.seedUser("R", "DLX1234")
	repos.seedUser("new-user", "DLXNEWNEW")

	first, err := svc.AttributeSignup(context.Background(), "DLX1234", "new-user", "new@test.com", "New")
	if err != nil {
		t.Fatalf("首次归属应成功: %v", err)
	}
	second, err := svc.AttributeSignup(context.Background(), "DLX1234", "new-user", "new@test.com", "New")
	if err != nil {
		t.Fatalf("重复归属应成功: %v", err)
	}
	if !second.AlreadyAttributed || second.EventID != first.EventID {
		t.Errorf("重复归属应返回已有记录，实际=%+v", second)
	}
	if referrer.ReferralCount != 1 || referrer.ActiveReferrals != 1 {
		t.Errorf("重复归属不应重复计数，实际 count=%d active=%d", referrer.ReferralCount, referrer.ActiveReferrals)
	}
	if n := repos.event.countByReferrer("R"); n != 1 {
		t.Errorf("期望 1 条推荐记录，实际=%d", n)
	}
}

func TestReferralService_AttributeSignup_BlankAndSelf(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	self := repos.seedUser("R", "DLX1234")

	for _, code := range []string{"", "   ", "DLX1234"} {
		result, err := svc.AttributeSignup(context.Background(), code, "R", "r@test.com", "R")
		if err != nil || result.Attributed {
			t.Errorf("code=%q 应为无操作: result=%+v err=%v", code, result, err)
		}
	}
	if self.ReferralCount != 0 || len(repos.event.events) != 0 {
		t.Error("自我推荐不应产生任何变更")
	}
}

func TestReferralService_AttributeSignup_StoreError(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.user.err = errMockStore

	_, err := svc.AttributeSignup(context.Background(), "DLX1234", "new-user", "new@test.com", "New")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("期望 ErrStoreUnavailable，实际: %v", err)
	}
}

// ── RecordClick / RecordInvites 测试 ──

func TestReferralService_RecordClick_Dedupe(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")

	first, err := svc.RecordClick(context.Background(), "DLX1234", "visitor-1")
	if err != nil || !first.Counted {
		t.Fatalf("首次点击应计数: result=%+v err=%v", first, err)
	}
	second, err := svc.RecordClick(context.Background(), "DLX1234", "visitor-1")
	if err != nil || second.Counted {
		t.Errorf("窗口期内重复点击不应计数: result=%+v err=%v", second, err)
	}
	if _, err := svc.RecordClick(context.Background(), "DLX1234", "visitor-2"); err != nil {
		t.Fatalf("其他访客点击应成功: %v", err)
	}
	if clicks := repos.affiliate.affiliates["R"].Clicks; clicks != 2 {
		t.Errorf("期望 clicks=2，实际=%d", clicks)
	}
}

func TestReferralService_RecordClick_CacheDownStillCounts(t *testing.T) {
	svc, repos, cache := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")
	cache.err = errMockStore

	result, err := svc.RecordClick(context.Background(), "DLX1234", "visitor-1")
	if err != nil || !result.Counted {
		t.Errorf("去重失败时仍应计数: result=%+v err=%v", result, err)
	}
}

func TestReferralService_RecordClick_Unmatched(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("R", "DLX1234") // 未加入推广计划

	for _, ref := range []string{"nobody", "DLX1234"} {
		result, err := svc.RecordClick(context.Background(), ref, "")
		if err != nil || result.Counted {
			t.Errorf("ref=%s 不应计数: result=%+v err=%v", ref, result, err)
		}
	}
}

func TestReferralService_RecordInvites(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")

	result, err := svc.RecordInvites(context.Background(), "R", 5)
	if err != nil {
		t.Fatalf("RecordInvites 应成功: %v", err)
	}
	if result.InvitesSent != 5 || repos.affiliate.affiliates["R"].InvitesSent != 5 {
		t.Errorf("期望 invites_sent=5，实际=%d", result.InvitesSent)
	}

	for _, n := range []int{0, -1, 101} {
		if _, err := svc.RecordInvites(context.Background(), "R", n); !errors.Is(err, ErrInvalidInviteCount) {
			t.Errorf("n=%d 期望 ErrInvalidInviteCount，实际: %v", n, err)
		}
	}
}

// ── GetHistory / GetDashboardSummary 测试 ──

func seedEvent(repos *testRepos, id, referrerID, status string, commission string, joinedAt time.Time) {
	repos.event.events[id] = &model.ReferralEvent{
		EventID:          id,
		ReferrerID:       referrerID,
		ReferredUserID:   "referred-" + id,
		Username:         "user " + id,
		Email:            id + "@test.com",
		Status:           status,
		CommissionAmount: decimal.RequireFromString(commission),
		JoinedAt:         joinedAt,
	}
}

func TestReferralService_GetHistory_Order(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedEvent(repos, "e1", "R", model.ReferralStatusJoined, "0", base)
	seedEvent(repos, "e2", "R", model.ReferralStatusActive, "12.50", base.Add(48*time.Hour))
	seedEvent(repos, "e3", "R", model.ReferralStatusJoined, "0", base.Add(24*time.Hour))
	seedEvent(repos, "other", "X", model.ReferralStatusJoined, "0", base)

	history, err := svc.GetHistory(context.Background(), "R")
	if err != nil {
		t.Fatalf("GetHistory 应成功: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("期望 3 条记录，实际=%d", len(history))
	}
	if history[0].ID != "e2" || history[1].ID != "e3" || history[2].ID != "e1" {
		t.Errorf("应按 joined_at 倒序，实际=%s,%s,%s", history[0].ID, history[1].ID, history[2].ID)
	}
}

func TestReferralService_GetHistory_EmptyNotNil(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")

	history, err := svc.GetHistory(context.Background(), "R")
	if err != nil {
		t.Fatalf("GetHistory 应成功: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("期望非 nil 空切片，实际=%v", history)
	}
}

func TestReferralService_GetHistory_Gated(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("R", "DLX1234")
	repos.seedAffiliate("R", model.ApprovalRejected)

	if _, err := svc.GetHistory(context.Background(), "R"); !errors.Is(err, ErrAffiliateNotApproved) {
		t.Errorf("期望 ErrAffiliateNotApproved，实际: %v", err)
	}
}

func TestReferralService_GetDashboardSummary_TotalsMatchHistory(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")
	repos.affiliate.affiliates["R"].Clicks = 40
	repos.affiliate.affiliates["R"].InvitesSent = 7
	now := time.Now()
	seedEvent(repos, "e1", "R", model.ReferralStatusActive, "10.25", now)
	seedEvent(repos, "e2", "R", model.ReferralStatusActive, "4.75", now)
	seedEvent(repos, "e3", "R", model.ReferralStatusJoined, "0", now)

	summary, err := svc.GetDashboardSummary(context.Background(), "R")
	if err != nil {
		t.Fatalf("GetDashboardSummary 应成功: %v", err)
	}
	history, _ := svc.GetHistory(context.Background(), "R")
	sum := decimal.Zero
	for _, h := range history {
		sum = sum.Add(h.CommissionAmount)
	}
	if !summary.TotalEarnings.Equal(sum) || !summary.TotalEarnings.Equal(decimal.RequireFromString("15")) {
		t.Errorf("TotalEarnings=%s 应等于历史佣金合计 %s", summary.TotalEarnings, sum)
	}
	if summary.JoinedCount != 3 || summary.ActiveCount != 2 {
		t.Errorf("期望 joined=3 active=2，实际 joined=%d active=%d", summary.JoinedCount, summary.ActiveCount)
	}
	if summary.Clicks != 40 || summary.InvitesSent != 7 {
		t.Errorf("计数不正确: %+v", summary)
	}
	if summary.Tier != ComputeTier(2) {
		t.Errorf("等级应由有效推荐数推导，实际=%+v", summary.Tier)
	}
}

func TestReferralService_GetDashboardSummary_Empty(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")

	summary, err := svc.GetDashboardSummary(context.Background(), "R")
	if err != nil {
		t.Fatalf("GetDashboardSummary 应成功: %v", err)
	}
	if !summary.TotalEarnings.IsZero() {
		t.Errorf("空历史合计应为 0，实际=%s", summary.TotalEarnings)
	}
	if summary.Tier.Level != 1 {
		t.Errorf("空历史应为 1 级，实际=%d", summary.Tier.Level)
	}
}

func TestReferralService_GetDashboardSummary_CacheInvalidatedOnWrite(t *testing.T) {
	svc, repos, cache := setupTestReferralService()
	seedApproved(repos, "R", "DLX1234")

	if _, err := svc.GetDashboardSummary(context.Background(), "R"); err != nil {
		t.Fatalf("GetDashboardSummary 应成功: %v", err)
	}
	if _, ok := cache.summaries["R"]; !ok {
		t.Fatal("看板结果应写入缓存")
	}

	if _, err := svc.RecordClick(context.Background(), "DLX1234", ""); err != nil {
		t.Fatalf("RecordClick 应成功: %v", err)
	}
	if _, ok := cache.summaries["R"]; ok {
		t.Error("写操作后缓存应失效")
	}

	summary, _ := svc.GetDashboardSummary(context.Background(), "R")
	if summary.Clicks != 1 {
		t.Errorf("期望 clicks=1，实际=%d", summary.Clicks)
	}
}

func TestReferralService_GetDashboardSummary_NotApproved(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("R", "DLX1234")
	repos.seedAffiliate("R", model.ApprovalPending)

	if _, err := svc.GetDashboardSummary(context.Background(), "R"); !errors.Is(err, ErrAffiliateNotApproved) {
		t.Errorf("期望 ErrAffiliateNotApproved，实际: %v", err)
	}
}

// ── ActivateReferral 测试 ──

func TestReferralService_ActivateReferral(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	referrer := repos.seedUser("R", "DLX1234")
	referrer.ActiveReferrals = 1
	seedEvent(repos, "e1", "R", model.ReferralStatusJoined, "0", time.Now())

	result, err := svc.ActivateReferral(context.Background(), "e1", decimal.RequireFromString("25.00"))
	if err != nil {
		t.Fatalf("ActivateReferral 应成功: %v", err)
	}
	if result.Status != model.ReferralStatusActive || !result.CommissionAmount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("激活结果不正确: %+v", result)
	}
	if referrer.ActiveReferrals != 1 {
		t.Error("激活不应修改推荐人计数")
	}
}

func TestReferralService_ActivateReferral_Invalid(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedEvent(repos, "e1", "R", model.ReferralStatusActive, "30", time.Now())

	if _, err := svc.ActivateReferral(context.Background(), "e1", decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidCommission) {
		t.Errorf("负数佣金期望 ErrInvalidCommission，实际: %v", err)
	}
	if _, err := svc.ActivateReferral(context.Background(), "e1", decimal.NewFromInt(10)); !errors.Is(err, ErrInvalidCommission) {
		t.Errorf("佣金下调期望 ErrInvalidCommission，实际: %v", err)
	}
	if _, err := svc.ActivateReferral(context.Background(), "missing", decimal.Zero); !errors.Is(err, ErrReferralEventNotFound) {
		t.Errorf("期望 ErrReferralEventNotFound，实际: %v", err)
	}
}

func TestReferralService_ActivateReferral_ConcurrentHigherWins(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	repos.seedUser("R", "DLX1234")
	seedEvent(repos, "e1", "R", model.ReferralStatusJoined, "0", time.Now())
	// 读取之后、写入之前另一位管理员已写入 50
	repos.event.beforeActivate = func() {
		repos.event.events["e1"].CommissionAmount = decimal.NewFromInt(50)
	}

	_, err := svc.ActivateReferral(context.Background(), "e1", decimal.NewFromInt(20))
	if !errors.Is(err, ErrInvalidCommission) {
		t.Errorf("期望 ErrInvalidCommission，实际: %v", err)
	}
	if got := repos.event.events["e1"].CommissionAmount; !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("佣金不应被下调，实际=%s", got)
	}
}

// ── ListAffiliates 测试 ──

func TestReferralService_ListAffiliates_FilterByStatus(t *testing.T) {
	svc, repos, _ := setupTestReferralService()
	seedApproved(repos, "a1", "DLXA00001")
	repos.seedUser("p1", "DLXP00001")
	repos.seedAffiliate("p1", model.ApprovalPending)
	repos.seedUser("p2", "DLXP00002")
	repos.seedAffiliate("p2", model.ApprovalPending)

	req := &dto.AffiliateListRequest{Status: model.ApprovalPending}
	list, total, err := svc.ListAffiliates(context.Background(), req)
	if err != nil {
		t.Fatalf("ListAffiliates 应成功: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("期望 2 条 pending，实际 total=%d len=%d", total, len(list))
	}
	for _, a := range list {
		if a.ReferralCode == "" {
			t.Errorf("推广员 %s 应带推荐码", a.OwnerID)
		}
	}
}
