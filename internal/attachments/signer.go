// Package attachments issues time-limited signed upload URLs for binary
// channel attachments. It is independent of the message and connection core.
package attachments

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// UploadGrant is a one-shot permission to upload a single attachment.
type UploadGrant struct {
	AttachmentID  uuid.UUID `json:"attachmentId"`
	UploadURL     string    `json:"uploadUrl"`
	AttachmentURL string    `json:"attachmentUrl"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type uploadClaims struct {
	ChannelID string `json:"channelId"`
	jwt.RegisteredClaims
}

// Signer mints and verifies signed upload URLs.
type Signer struct {
	secret  []byte
	baseURL string
	expiry  time.Duration
	clock   clockwork.Clock
}

func NewSigner(secret, baseURL string, expiry time.Duration, clock clockwork.Clock) *Signer {
	return &Signer{secret: []byte(secret), baseURL: baseURL, expiry: expiry, clock: clock}
}

// GenerateUploadURL issues an upload URL for a new attachment in the given
// channel. The URL expires after the configured TTL; the attachment URL it
// grants stays valid indefinitely.
func (s *Signer) GenerateUploadURL(channelID uuid.UUID) (*UploadGrant, error) {
	attachmentID := uuid.New()
	now := s.clock.Now()
	expiresAt := now.Add(s.expiry)

	claims := uploadClaims{
		ChannelID: channelID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   attachmentID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload token: %w", err)
	}

	attachmentURL := fmt.Sprintf("%s/%s/%s", s.baseURL, channelID, attachmentID)
	return &UploadGrant{
		AttachmentID:  attachmentID,
		UploadURL:     attachmentURL + "?token=" + token,
		AttachmentURL: attachmentURL,
		ExpiresAt:     expiresAt,
	}, nil
}

// VerifyUploadToken validates a signed upload token and returns the channel
// and attachment ids it grants.
func (s *Signer) VerifyUploadToken(tokenString string) (channelID, attachmentID uuid.UUID, err error) {
	var claims uploadClaims
	_, err = jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid upload token: %w", err)
	}

	channelID, err = uuid.Parse(claims.ChannelID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid channel id in upload token: %w", err)
	}
	attachmentID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid attachment id in upload token: %w", err)
	}
	return channelID, attachmentID, nil
}
