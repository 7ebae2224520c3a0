package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"littlejoys/internal/domain"
	"littlejoys/internal/token"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type AuthService struct {
	userRepo  domain.UserRepository
	tokenRepo domain.RefreshTokenRepository
	issuer    *token.Issuer
}

func NewAuthService(userRepo domain.UserRepository, tokenRepo domain.RefreshTokenRepository, issuer *token.Issuer) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		issuer:    issuer,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password, nickname string) (*domain.User, *domain.TokenPair, error) {
	if !emailRegex.MatchString(email) || len(email) > 255 {
		return nil, nil, domain.ErrInvalidInput
	}
	if len(password) < 8 || len(password) > 100 {
		return nil, nil, domain.ErrInvalidInput
	}
	if nickname == "" {
		// An omitted nickname falls back to the email's local part
		nickname = email[:strings.Index(email, "@")]
	}
	if len(nickname) > 50 {
		return nil, nil, domain.ErrInvalidInput
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, nil, domain.ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Nickname:     nickname,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(password),
	); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed whether or not a new pair is issued; a second presentation of the
// same token always fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	stored, err := s.tokenRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if err := s.tokenRepo.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	return s.issuePair(ctx, user)
}

// Logout revokes the presented refresh token. Revoking an unknown token is
// not an error; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokenRepo.Delete(ctx, refreshToken)
}

// LogoutAll revokes every refresh token the user holds
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.tokenRepo.DeleteByUser(ctx, userID)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// PurgeExpiredTokens removes refresh tokens past their expiry; run periodically
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokenRepo.DeleteExpired(ctx)
}

func (s *AuthService) issuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, expiresAt, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refreshValue, err := token.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	refresh := &domain.RefreshToken{
		Token:     refreshValue,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(token.RefreshTokenTTL),
	}
	if err := s.tokenRepo.Create(ctx, refresh); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		ExpiresAt:    expiresAt,
	}, nil
}
