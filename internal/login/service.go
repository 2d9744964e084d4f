// Package login exchanges Moodle credentials for a web-service token.
package login

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	apperrors "github.com/freekieb7/go-duedate/internal/errors"
	"github.com/freekieb7/go-duedate/internal/moodle"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

const (
	MessageMissingFields = "Please fill in all required fields."
	MessageUnexpected    = "Unexpected response from server."
	MessageUnreachable   = "Unable to connect to the Moodle server."
	MessageRateLimited   = "Too many login attempts. Try again later."
	messageFailedPrefix  = "Login failed: "
)

// Authenticator is the part of the Moodle client the login flow needs.
type Authenticator interface {
	Token(ctx context.Context, username, password string) (moodle.TokenResponse, error)
}

type Service struct {
	auth   Authenticator
	group  singleflight.Group
	logger *slog.Logger
}

func NewService(auth Authenticator, logger *slog.Logger) *Service {
	return &Service{
		auth:   auth,
		logger: logger,
	}
}

// Login returns the token Moodle issues for the credentials. Concurrent calls
// with identical credentials share a single upstream request.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperrors.ValidationError(MessageMissingFields, nil)
	}

	v, err, shared := s.group.Do(flightKey(username, password), func() (any, error) {
		// Detached so one caller leaving does not fail the others; the client
		// still applies its own timeout.
		return s.auth.Token(context.WithoutCancel(ctx), username, password)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Token request failed", "username", username, "error", err)
		return "", err
	}
	if shared {
		s.logger.DebugContext(ctx, "Joined in-flight login", "username", username)
	}

	resp := v.(moodle.TokenResponse)
	if resp.Error != "" {
		s.logger.InfoContext(ctx, "Moodle rejected login", "username", username, "errorcode", resp.ErrorCode)
		return "", apperrors.AuthRejectedError(resp.Error, nil)
	}
	if resp.Token == "" {
		s.logger.WarnContext(ctx, "Token response carried neither token nor error", "username", username)
		return "", apperrors.UnexpectedResponseError(MessageUnexpected, nil)
	}

	s.logger.InfoContext(ctx, "Login succeeded", "username", username)
	return resp.Token, nil
}

func flightKey(username, password string) string {
	sum := blake2b.Sum256([]byte(username + "\x00" + password))
	return hex.EncodeToString(sum[:])
}

// Message turns a Login error into the text shown above the form.
func Message(err error) string {
	var appErr *apperrors.AppError
	switch apperrors.Code(err) {
	case apperrors.CodeValidationFailed:
		return MessageMissingFields
	case apperrors.CodeAuthRejected:
		if errors.As(err, &appErr) {
			return messageFailedPrefix + appErr.Message
		}
	case apperrors.CodeRateLimited:
		return MessageRateLimited
	case apperrors.CodeUpstreamUnavailable:
		return MessageUnreachable
	}
	return MessageUnexpected
}
