package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结果标签取值
const (
	ResultOK        = "ok"
	ResultTaken     = "taken"
	ResultInvalid   = "invalid"
	ResultError     = "error"
	ResultUnmatched = "unmatched"
	ResultDuplicate = "duplicate"
	ResultDeduped   = "deduped"
)

// Ledger 推广账本业务指标
type Ledger struct {
	SlugClaims   *prometheus.CounterVec
	Attributions *prometheus.CounterVec
	Clicks       *prometheus.CounterVec
}

// NewLedger 在 reg 上注册推广账本指标
func NewLedger(reg prometheus.Registerer) *Ledger {
	f := promauto.With(reg)
	return &Ledger{
		SlugClaims: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digilinex",
			Subsystem: "referral",
			Name:      "slug_claims_total",
			Help:      "Slug claim attempts by result.",
		}, []string{"result"}),
		Attributions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digilinex",
			Subsystem: "referral",
			Name:      "attributions_total",
			Help:      "Signup attribution attempts by result.",
		}, []string{"result"}),
		Clicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digilinex",
			Subsystem: "referral",
			Name:      "clicks_total",
			Help:      "Referral link clicks by result.",
		}, []string{"result"}),
	}
}
