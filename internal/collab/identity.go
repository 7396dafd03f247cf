package collab

import (
	"context"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab/rest"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
)

// Identity is the user service.
type Identity struct{ c *rest.Client }

// LoginRequest is forwarded verbatim to POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// User fetches the caller's identity. A missing record means the token
// names a user that no longer exists, which is an authentication failure.
func (s *Identity) User(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.c.Get(ctx, "/users/"+rest.PathID(id), nil, &u)
	if isNotFound(err) {
		return u, apierr.NotAuthenticated("").Wrap(err)
	}
	return u, err
}

// UserByEmail returns found=false when no identity exists for email.
func (s *Identity) UserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var u domain.User
	err := s.c.Get(ctx, "/users/"+rest.PathID(email)+"/user", nil, &u)
	if isNotFound(err) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

// CreateUser posts a new identity record.
func (s *Identity) CreateUser(ctx context.Context, u any) (domain.User, error) {
	var out domain.User
	err := s.c.Post(ctx, "/users", u, &out)
	return out, err
}

// PatchUser sends a partial update (e.g. merchants or merchantInvites).
func (s *Identity) PatchUser(ctx context.Context, id string, patch map[string]any) error {
	return s.c.Patch(ctx, "/users/"+rest.PathID(id), patch, nil)
}

// Login exchanges credentials for a token.
func (s *Identity) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := s.c.Post(ctx, "/login", req, &out)
	return out, err
}

// Member fetches another user, e.g. the target of a merchant unlink.
func (s *Identity) Member(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.c.Get(ctx, "/users/"+rest.PathID(id), nil, &u)
	return u, notFound(err, "User", "user")
}
