package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/YASH5398/dlx-sub003/config"
	"github.com/YASH5398/dlx-sub003/internal/dto"
	"github.com/YASH5398/dlx-sub003/internal/model"
	"github.com/YASH5398/dlx-sub003/internal/repository"
	pkgerrors "github.com/YASH5398/dlx-sub003/pkg/errors"
	"github.com/YASH5398/dlx-sub003/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailExists        = errors.New("邮箱已注册")
	ErrWeakPassword       = errors.New("密码须为 8-72 位且同时包含字母和数字")

	// ErrReferralCodeExhausted 多次重试仍未生成可用推荐码
	ErrReferralCodeExhausted = errors.New("推荐码生成失败，请重试")
)

// 推荐码冲突时的最大重试次数
const referralCodeAttempts = 3

// TokenBlacklist Token 黑名单，由 Redis 实现
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	GetCurrentUser(ctx context.Context, userID string) (*dto.UserResponse, error)
}

type authService struct {
	cfg       *config.Config
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	referral  ReferralService
	logger    *zap.Logger
	newID     func() string
}

// NewAuthService 创建 AuthService 实例
// blacklist 可为 nil，此时登出仅由客户端丢弃 Token
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	referral ReferralService,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:       cfg,
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		referral:  referral,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// ═══════════════════════════════════════════════════════════
// Register 注册并写入推荐归属
// ═══════════════════════════════════════════════════════════
//
// 账户创建是权威操作，推荐归属为尽力而为：
// 归属失败只记录日志，不回滚已创建的账户。

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if !isStrongPassword(req.Password) {
		return nil, ErrWeakPassword
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询邮箱失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	user, err := s.createUser(ctx, email, strings.TrimSpace(req.DisplayName), string(hash))
	if err != nil {
		return nil, err
	}

	resp := &dto.RegisterResponse{}
	if strings.TrimSpace(req.ReferralCode) != "" {
		attribution, err := s.referral.AttributeSignup(ctx, req.ReferralCode, user.UserID, user.Email, user.DisplayName)
		if err != nil {
			s.logger.Warn("推荐归属失败，账户已创建",
				zap.String("user_id", user.UserID),
				zap.String("referral_code", req.ReferralCode),
				zap.Error(err),
			)
		} else {
			resp.Referral = attribution
		}
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}
	resp.TokenResponse = *token

	s.logger.Info("用户注册成功", zap.String("user_id", user.UserID))
	return resp, nil
}

// createUser 生成推荐码并落库，推荐码与已有推荐码或推广短名冲突时换新 ID 重试
func (s *authService) createUser(ctx context.Context, email, displayName, passwordHash string) (*model.User, error) {
	lastErr := ErrReferralCodeExhausted
	for i := 0; i < referralCodeAttempts; i++ {
		userID := s.newID()
		code := GenerateReferralCode(s.cfg.Referral.CodePrefix, userID)

		taken, err := s.codeShadowsSlug(ctx, code)
		if err != nil {
			s.logger.Error("查询推广短名失败", zap.Error(err))
			return nil, err
		}
		if taken {
			continue
		}

		user := &model.User{
			UserID:       userID,
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: passwordHash,
			Role:         model.RoleUser,
			ReferralCode: code,
		}
		err = s.repo.User.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !pkgerrors.IsDuplicate(err) {
			s.logger.Error("创建用户失败", zap.Error(err))
			return nil, err
		}
		// 邮箱并发注册同样触发唯一约束
		if _, getErr := s.repo.User.GetByEmail(ctx, email); getErr == nil {
			return nil, ErrEmailExists
		}
		lastErr = err
	}
	s.logger.Error("推荐码生成冲突次数过多", zap.Error(lastErr))
	return nil, lastErr
}

// codeShadowsSlug 推荐码是否与已占用的推广短名同名（短名均为小写）
func (s *authService) codeShadowsSlug(ctx context.Context, code string) (bool, error) {
	_, err := s.repo.Affiliate.FindBySlug(ctx, strings.ToLower(code))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token
	return s.issueToken(ctx, user)
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil || jti == "" {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("加入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) GetCurrentUser(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	resp := s.toUserResponse(ctx, user)
	return &resp, nil
}

func (s *authService) issueToken(ctx context.Context, user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role, user.Email)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:        s.toUserResponse(ctx, user),
	}, nil
}

// toUserResponse 推广链接优先使用推广短名，查询失败时退回推荐码
func (s *authService) toUserResponse(ctx context.Context, user *model.User) dto.UserResponse {
	slug := ""
	if affiliate, err := s.repo.Affiliate.GetByOwner(ctx, user.UserID); err == nil {
		slug = affiliate.SlugValue()
	}
	return dto.UserResponse{
		ID:              user.UserID,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		Role:            user.Role,
		ReferralCode:    user.ReferralCode,
		ReferralLink:    s.referral.ResolveReferralLink(slug, user.ReferralCode),
		ReferralCount:   user.ReferralCount,
		ActiveReferrals: user.ActiveReferrals,
	}
}

// isStrongPassword 8-72 位且同时包含字母和数字
func isStrongPassword(password string) bool {
	if len(password) < 8 || len(password) > 72 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
