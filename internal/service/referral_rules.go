package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/YASH5398/dlx-sub003/internal/dto"
)

// ── 推广短名规则 ──

const (
	SlugMinLen = 3
	SlugMaxLen = 32
)

// ValidateSlug 校验推广短名格式，合法时返回 nil
// 先去除首尾空白，再检查长度与字符集 [a-z0-9-]；大写字母视为非法
func ValidateSlug(candidate string) error {
	slug := strings.TrimSpace(candidate)
	switch {
	case slug == "":
		return ErrSlugEmpty
	case len(slug) < SlugMinLen:
		return ErrSlugTooShort
	case len(slug) > SlugMaxLen:
		return ErrSlugTooLong
	}
	for _, r := range slug {
		if !isSlugRune(r) {
			return ErrSlugInvalidChars
		}
	}
	return nil
}

func isSlugRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
}

// ── 推广链接 ──

// BuildReferralLink 拼接推广链接，优先使用自定义短名，其次使用系统推荐码
func BuildReferralLink(baseURL, signupPath, customSlug, fallbackCode string) string {
	ref := strings.TrimSpace(customSlug)
	if ref == "" {
		ref = strings.TrimSpace(fallbackCode)
	}
	path := signupPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(baseURL, "/") + path + "?ref=" + url.QueryEscape(ref)
}

// GenerateReferralCode 由用户 ID 末 6 位派生系统推荐码，如 DLX3F9A1C
func GenerateReferralCode(prefix, userID string) string {
	id := strings.ReplaceAll(userID, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return strings.ToUpper(prefix + id)
}

// ── 佣金等级 ──

// commissionTiers 按 minVolume 升序排列
var commissionTiers = []struct {
	minVolume int
	tier      dto.CommissionTier
}{
	{0, dto.CommissionTier{Level: 1, TierName: "Starter", RatePercent: 20}},
	{10, dto.CommissionTier{Level: 2, TierName: "Pro", RatePercent: 30}},
	{50, dto.CommissionTier{Level: 3, TierName: "Elite", RatePercent: 45}},
}

// ComputeTier 将有效推荐数映射为佣金等级，负数按 0 处理
func ComputeTier(volume int) dto.CommissionTier {
	if volume < 0 {
		volume = 0
	}
	tier := commissionTiers[0].tier
	for _, t := range commissionTiers {
		if volume >= t.minVolume {
			tier = t.tier
		}
	}
	return tier
}

// SlugErrorReason 返回短名校验失败的用户可读原因
func SlugErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSlugEmpty):
		return "slug is required"
	case errors.Is(err, ErrSlugTooShort):
		return fmt.Sprintf("slug must be at least %d characters", SlugMinLen)
	case errors.Is(err, ErrSlugTooLong):
		return fmt.Sprintf("slug must be at most %d characters", SlugMaxLen)
	case errors.Is(err, ErrSlugInvalidChars):
		return "slug may only contain lowercase letters, digits and hyphens"
	default:
		return "invalid format"
	}
}
