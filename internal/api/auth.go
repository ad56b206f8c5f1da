package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// Login exchanges credentials for a bearer token. The body is form encoded.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	form := url.Values{}
	form.Set("username", req.Username)
	form.Set("password", req.Password)

	r := request{
		method:      http.MethodPost,
		route:       "/auth/token",
		path:        "/auth/token",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}

	var resp models.AuthResponse
	if err := c.do(ctx, r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/register", "/auth/register", req)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := c.do(ctx, r, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
