package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Not authenticated"}`, "Not authenticated"},
		{"validation list", `{"detail":[{"loc":["body","title"],"msg":"field required"},{"msg":"bad"}]}`, "title: field required; bad"},
		{"numeric loc", `{"detail":[{"loc":["body",0],"msg":"oops"}]}`, "oops"},
		{"no detail", `{"error":"x"}`, ""},
		{"object detail", `{"detail":{"a":1}}`, ""},
		{"not json", `<html>`, ""},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeDetail([]byte(tt.body)))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"detail wins", &Error{StatusCode: 400, Detail: "Username already registered"}, "Username already registered"},
		{"wrapped detail", fmt.Errorf("failed to create: %w", &Error{StatusCode: 404, Detail: "Scene not found"}), "Scene not found"},
		{"no detail", &Error{StatusCode: 500}, "request failed with status code 500"},
		{"plain error", errors.New("dial tcp: connection refused"), "dial tcp: connection refused"},
		{"empty message", errors.New(""), UnknownErrorMessage},
		{"nil", nil, UnknownErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, IsUnauthorized(&Error{StatusCode: http.StatusUnauthorized}))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", &Error{StatusCode: http.StatusNotFound})))
	assert.Equal(t, 0, StatusCode(errors.New("boom")))
	assert.False(t, IsNotFound(nil))
}
