package service

import (
	"context"
	"ctchen222/tictactoe-engine/internal/api/models"
	"ctchen222/tictactoe-engine/internal/api/repository"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const guestPrefix = "guest-"

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims identifies the player a token was issued to. Subject holds the
// player id used as the session owner.
type Claims struct {
	Username string `json:"un,omitempty"`
	Guest    bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// PlayerService defines the interface for player-related business logic.
type PlayerService interface {
	Register(ctx context.Context, req *models.RegisterRequest) error
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	GuestLogin(ctx context.Context) (*models.LoginResponse, error)
	ParseToken(token string) (*Claims, error)
}

type playerService struct {
	playerRepo repository.PlayerRepository
	secret     []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewPlayerService creates a new PlayerService signing tokens with secret.
func NewPlayerService(playerRepo repository.PlayerRepository, secret string, ttl time.Duration) PlayerService {
	return &playerService{
		playerRepo: playerRepo,
		secret:     []byte(secret),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Register handles player registration.
func (s *playerService) Register(ctx context.Context, req *models.RegisterRequest) error {
	existing, err := s.playerRepo.GetPlayerByUsername(ctx, req.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUsernameTaken
	}

	// A concurrent registration can still win the insert.
	err = s.playerRepo.CreatePlayer(ctx, &models.Player{Username: req.Username}, req.Password)
	if errors.Is(err, repository.ErrDuplicateUsername) {
		return ErrUsernameTaken
	}
	return err
}

// Login checks the password and returns a signed token.
func (s *playerService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	player, err := s.playerRepo.GetPlayerByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(strconv.FormatInt(player.ID, 10), player.Username, false)
}

// GuestLogin issues a token for a fresh guest id.
func (s *playerService) GuestLogin(ctx context.Context) (*models.LoginResponse, error) {
	return s.issue(guestPrefix+uuid.New().String(), "", true)
}

// ParseToken verifies an HS256 token and returns its claims.
func (s *playerService) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (s *playerService) issue(playerID, username string, guest bool) (*models.LoginResponse, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		Guest:    guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &models.LoginResponse{Token: tokenString, PlayerID: playerID}, nil
}
