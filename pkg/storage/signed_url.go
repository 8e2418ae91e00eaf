package storage

import (
	"crypto/hmac"
	"errors"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken is returned for malformed, forged, expired or misused tokens.
var ErrInvalidToken = errors.New("invalid storage token")

// Grant operations.
const (
	GrantGet  = "get"
	GrantPut  = "put"
	GrantPart = "part"
)

// Grant is the capability carried by a signed storage token.
type Grant struct {
	Op          string
	Key         string
	ContentType string
	UploadID    string
	PartNumber  int32
	ExpiresAt   time.Time
}

// SignedURLSigner creates and validates signed storage tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and default TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Sign returns a token for the grant. A zero ttl falls back to the signer default.
func (s *SignedURLSigner) Sign(grant Grant, ttl time.Duration) (string, time.Time, error) {
	if grant.Key == "" {
		return "", time.Time{}, fmt.Errorf("grant key required")
	}
	switch grant.Op {
	case GrantGet, GrantPut:
	case GrantPart:
		if grant.UploadID == "" || grant.PartNumber < 1 {
			return "", time.Time{}, fmt.Errorf("part grant requires upload id and part number")
		}
	default:
		return "", time.Time{}, fmt.Errorf("unknown grant op %q", grant.Op)
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	expiresAt := time.Now().Add(ttl)
	fields := []string{
		grant.Op,
		strconv.FormatInt(expiresAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString([]byte(grant.Key)),
		base64.RawURLEncoding.EncodeToString([]byte(grant.ContentType)),
		grant.UploadID,
		strconv.Itoa(int(grant.PartNumber)),
	}
	payload := strings.Join(fields, "|")
	token := strings.Join(append(fields, s.sign(payload)), ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded grant.
// When allowExpired is true, the timestamp check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (*Grant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 7 {
		return nil, fmt.Errorf("%w: invalid token format", ErrInvalidToken)
	}
	fields, signature := parts[:6], parts[6]

	expected := s.sign(strings.Join(fields, "|"))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("%w: invalid token signature", ErrInvalidToken)
	}

	expUnix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp", ErrInvalidToken)
	}
	key, err := base64.RawURLEncoding.DecodeString(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: decode key: %v", ErrInvalidToken, err)
	}
	contentType, err := base64.RawURLEncoding.DecodeString(fields[3])
	if err != nil {
		return nil, fmt.Errorf("%w: decode content type: %v", ErrInvalidToken, err)
	}
	partNumber, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid part number", ErrInvalidToken)
	}

	grant := &Grant{
		Op:          fields[0],
		Key:         string(key),
		ContentType: string(contentType),
		UploadID:    fields[4],
		PartNumber:  int32(partNumber),
		ExpiresAt:   time.Unix(expUnix, 0),
	}
	if !allowExpired && time.Now().After(grant.ExpiresAt) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
