package models

// RefinePromptRequest asks the backend to refine a prompt, or to invent one
// from the project title when Prompt is empty
type RefinePromptRequest struct {
	ProjectTitle string `json:"project_title"`
	Prompt       string `json:"prompt"`
}

// RefinePromptResponse carries the refined prompt
type RefinePromptResponse struct {
	RefinedPrompt string `json:"refined_prompt"`
}

// GenerateCodeRequest asks for animation code for a prompt
type GenerateCodeRequest struct {
	Prompt string `json:"prompt" validate:"notblank"`
}

// GenerateCodeResponse carries generated animation code
type GenerateCodeResponse struct {
	Code string `json:"code"`
}
