package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-geomine/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
)

type Service struct {
	secret []byte
	db     db.Querier
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{secret: []byte(secret), db: db}
}

func (s *Service) Register(ctx context.Context, req Credentials) (Player, TokenResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return Player{}, TokenResponse{}, errors.New("username and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Player{}, TokenResponse{}, err
	}

	player := Player{ID: uuid.NewString(), Username: req.Username, PasswordHash: string(hash)}
	row := s.db.QueryRow(ctx, `
		INSERT INTO players (id, username, password_hash)
		VALUES ($1,$2,$3)
		RETURNING created_at
	`, player.ID, player.Username, player.PasswordHash)
	if err := row.Scan(&player.CreatedAt); err != nil {
		return Player{}, TokenResponse{}, err
	}

	tokens, err := s.IssueToken(player.ID)
	if err != nil {
		return Player{}, TokenResponse{}, err
	}
	return player, tokens, nil
}

func (s *Service) Login(ctx context.Context, req Credentials) (Player, TokenResponse, error) {
	var player Player
	row := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM players WHERE username = $1
	`, strings.TrimSpace(req.Username))
	if err := row.Scan(&player.ID, &player.Username, &player.PasswordHash, &player.CreatedAt); err != nil {
		return Player{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(req.Password)); err != nil {
		return Player{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.IssueToken(player.ID)
	if err != nil {
		return Player{}, TokenResponse{}, err
	}
	return player, tokens, nil
}

func (s *Service) IssueToken(playerID string) (TokenResponse, error) {
	claims := Claims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

// ValidateToken returns the player id carried by an access token.
func (s *Service) ValidateToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.PlayerID == "" {
		return "", ErrTokenInvalid
	}
	return claims.PlayerID, nil
}
