package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/validate"
	"shelf-taught/pkg/utils"
)

type RegisterInput struct {
	Email     string `json:"email" validate:"required,shelf_email"`
	Password  string `json:"password" validate:"required,password"`
	FirstName string `json:"firstName" validate:"required,personname"`
	LastName  string `json:"lastName" validate:"required,personname"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,shelf_email"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type AuthService struct {
	users domain.UserRepository
	jwt   *auth.JWTer
	log   *zap.Logger
}

func NewAuthService(users domain.UserRepository, jwt *auth.JWTer, log *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: jwt, log: log.Named("auth")}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := validate.Struct(&in); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("An account with this email already exists")
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("hash password failed", err)
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         domain.RoleUser,
	}
	// 并发注册由唯一索引兜底，返回 409
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validate.Struct(&in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if u == nil || !utils.CheckPassword(in.Password, u.PasswordHash) {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	return s.issue(u)
}

// Me 令牌有效但用户已被删除时返回 401
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.Unauthenticated("User no longer exists")
	}
	return u, nil
}

func (s *AuthService) issue(u *domain.User) (*AuthResult, error) {
	tok, err := s.jwt.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, apperr.Internal("issue token failed", err)
	}
	return &AuthResult{Token: tok, User: u}, nil
}

// EnsureAdmin 运维入口：账号不存在则以 ADMIN 创建，已存在则提升为 ADMIN（不改密码）
func (s *AuthService) EnsureAdmin(ctx context.Context, in RegisterInput) (u *domain.User, created bool, err error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Role != domain.RoleAdmin {
			if err := s.users.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
				return nil, false, err
			}
			existing.Role = domain.RoleAdmin
		}
		s.log.Info("admin ensured", zap.String("user_id", existing.ID))
		return existing, false, nil
	}
	if err := validate.Struct(&in); err != nil {
		return nil, false, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, false, apperr.Internal("hash password failed", err)
	}
	u = &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         domain.RoleAdmin,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, err
	}
	s.log.Info("admin created", zap.String("user_id", u.ID))
	return u, true, nil
}
