package api

import (
	"context"
	"net/http"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// RefinePrompt asks the backend to rewrite a prompt. With an empty prompt
// the backend suggests one from the project title.
func (c *Client) RefinePrompt(ctx context.Context, req models.RefinePromptRequest) (string, error) {
	r, err := jsonRequest(http.MethodPost, "/ai/refine-prompt", "/ai/refine-prompt", req)
	if err != nil {
		return "", err
	}

	var resp models.RefinePromptResponse
	if err := c.do(ctx, r, &resp); err != nil {
		return "", err
	}
	return resp.RefinedPrompt, nil
}

// GenerateCode asks the backend for animation code for a prompt
func (c *Client) GenerateCode(ctx context.Context, req models.GenerateCodeRequest) (string, error) {
	r, err := jsonRequest(http.MethodPost, "/ai/generate-code", "/ai/generate-code", req)
	if err != nil {
		return "", err
	}

	var resp models.GenerateCodeResponse
	if err := c.do(ctx, r, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}
