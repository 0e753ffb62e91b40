package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/db"
)

const accessTokenTTL = time.Hour

var ErrInvalidCredentials = errors.New("invalid client credentials")

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

// CreateClient registers a new API client and returns its plain secret. The
// secret cannot be recovered later.
func (s *Service) CreateClient(ctx context.Context, req CreateClientRequest) (APIClient, string, error) {
	if req.Name == "" {
		return APIClient{}, "", errors.New("name required")
	}
	secret := uuid.NewString()
	client, err := s.saveClient(ctx, uuid.NewString(), req.Name, secret)
	if err != nil {
		return APIClient{}, "", err
	}
	return client, secret, nil
}

// EnsureClient creates or re-keys the client with a known id and secret, used
// to seed the first client from configuration.
func (s *Service) EnsureClient(ctx context.Context, id, secret string) error {
	if id == "" || secret == "" {
		return errors.New("client id and secret required")
	}
	_, err := s.saveClient(ctx, id, id, secret)
	return err
}

func (s *Service) saveClient(ctx context.Context, id, name, secret string) (APIClient, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return APIClient{}, err
	}

	client := APIClient{ID: id, Name: name, SecretHash: string(hash)}
	row := s.db.QueryRow(ctx, `
		INSERT INTO api_clients (id, name, secret_hash)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET secret_hash=EXCLUDED.secret_hash
		RETURNING created_at
	`, client.ID, client.Name, client.SecretHash)
	if err := row.Scan(&client.CreatedAt); err != nil {
		return APIClient{}, err
	}
	return client, nil
}

// IssueToken exchanges client credentials for a bearer access token.
func (s *Service) IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT secret_hash FROM api_clients
		WHERE id = $1 AND revoked_at IS NULL
	`, req.ClientID)

	var hash string
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenResponse{}, ErrInvalidCredentials
		}
		return TokenResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.ClientSecret)); err != nil {
		return TokenResponse{}, ErrInvalidCredentials
	}

	token, err := s.signToken(req.ClientID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.ClientID, nil
}

func (s *Service) signToken(clientID string, ttl time.Duration) (string, error) {
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}
