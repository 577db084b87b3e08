package api

type Model struct {
	ID              string `json:"id"`
	Object          string `json:"object"`
	OwnedBy         string `json:"owned_by"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ContextLength   int    `json:"context_length"`
	MaxOutputTokens int    `json:"max_output_tokens"`
	Default         bool   `json:"default"`
	Selected        bool   `json:"selected"`
}

type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
