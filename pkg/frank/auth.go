package frank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
)

type tokenPair struct {
	AuthToken    string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair and stores it on the client.
// Invalid credentials return an error wrapping ErrReauthRequired.
func (c *Client) Login(ctx context.Context, email, password string) (types.Authentication, error) {
	var data struct {
		Login *tokenPair `json:"login"`
	}
	err := c.do(ctx, "Login", loginMutation, map[string]any{
		"email":    email,
		"password": password,
	}, &data)
	if err != nil {
		return types.Authentication{}, err
	}
	if data.Login == nil || data.Login.AuthToken == "" {
		return types.Authentication{}, fmt.Errorf("%w: login returned no token", ErrReauthRequired)
	}

	auth := types.Authentication{
		AuthToken:    data.Login.AuthToken,
		RefreshToken: data.Login.RefreshToken,
	}
	c.setAuthentication(auth)
	log.Ctx(ctx).InfoContext(ctx, "logged in to frank", slog.String("email", email))
	return auth, nil
}

// RenewToken exchanges the current token pair for a fresh one. The new pair
// replaces the old one on the client and is returned so the caller can persist
// it.
func (c *Client) RenewToken(ctx context.Context) (types.Authentication, error) {
	if err := c.requireAuth("RenewToken"); err != nil {
		return types.Authentication{}, err
	}
	current := c.Authentication()

	var data struct {
		RenewToken *tokenPair `json:"renewToken"`
	}
	err := c.do(ctx, "RenewToken", renewTokenMutation, map[string]any{
		"authToken":    current.AuthToken,
		"refreshToken": current.RefreshToken,
	}, &data)
	if err != nil {
		return types.Authentication{}, err
	}
	if data.RenewToken == nil || data.RenewToken.AuthToken == "" {
		return types.Authentication{}, fmt.Errorf("%w: renewToken returned no token", ErrAuthExpired)
	}

	auth := types.Authentication{
		AuthToken:    data.RenewToken.AuthToken,
		RefreshToken: data.RenewToken.RefreshToken,
	}
	c.setAuthentication(auth)
	log.Ctx(ctx).DebugContext(ctx, "renewed frank token")
	return auth, nil
}
