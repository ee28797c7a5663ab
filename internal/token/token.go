package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer         = "matricare"
	familyAudience = "family"
)

var ErrInvalidToken = errors.New("invalid token")

// Signer issues and validates HS256 tokens.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a signer for secret. An empty secret is rejected.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// InviteClaims identify a family member invited to follow one patient.
type InviteClaims struct {
	PatientID string `json:"patient_id"`
	jwt.RegisteredClaims
}

// SessionToken signs a token whose subject is the session id.
func (s *Signer) SessionToken(sessionID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseSession returns the session id carried by a session token.
func (s *Signer) ParseSession(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	for _, aud := range claims.Audience {
		if aud == familyAudience {
			return "", ErrInvalidToken
		}
	}
	return claims.Subject, nil
}

// InviteToken signs a family invitation for email to follow patientID.
func (s *Signer) InviteToken(email, patientID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &InviteClaims{
		PatientID: patientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			Audience:  jwt.ClaimStrings{familyAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseInvite validates an invitation token.
func (s *Signer) ParseInvite(tokenString string) (*InviteClaims, error) {
	claims := &InviteClaims{}
	if err := s.parse(tokenString, claims, jwt.WithAudience(familyAudience)); err != nil {
		return nil, err
	}
	if claims.PatientID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Signer) parse(tokenString string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
