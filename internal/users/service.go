package users

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/davidnajera/mentiondesk-backend/pkg/auth"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	pkgerrors "github.com/davidnajera/mentiondesk-backend/pkg/errors"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

// Service issues bearer tokens for operators.
type Service struct {
	repo *Repository
	jwt  config.JWTConfig
}

// NewService wires the login dependencies.
func NewService(repo *Repository, jwt config.JWTConfig) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &Service{repo: repo, jwt: jwt}, nil
}

// LoginResult carries the issued token and the actor it represents.
type LoginResult struct {
	Token string      `json:"token"`
	Actor types.Actor `json:"user"`
}

// Login validates credentials and mints an access token. Unknown emails
// and bad passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	actor := types.Actor{ID: user.ID, Email: user.Email}
	token, err := auth.MintAccessToken(s.jwt, actor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}
	return &LoginResult{Token: token, Actor: actor}, nil
}
