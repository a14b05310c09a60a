// Package prompt provides the prompt library for model interactions.
// Prompts are defined as JSON or Hjson files, embedded at build time and
// optionally overridden from a directory at runtime, so wording can change
// without touching code.
package prompt

// PromptTemplate represents a reusable prompt with metadata
type PromptTemplate struct {
	ID               string           `json:"id"`                   // Unique identifier (e.g., "analysis.react")
	Name             string           `json:"name"`                 // Human-readable name
	Category         string           `json:"category"`             // Category (analysis, ...)
	Description      string           `json:"description"`          // Description of prompt purpose
	SystemPrompt     string           `json:"system_prompt"`        // Go template for the system prompt
	UserPromptTmpl   string           `json:"user_prompt_template"` // Go template for user prompt
	ResponseSchemaID string           `json:"response_schema_ref"`  // Reference to response schema
	Variables        []PromptVariable `json:"variables"`            // Variables used in template
	Version          string           `json:"version"`              // Version for tracking changes
}

// PromptVariable defines a variable used in a prompt template
type PromptVariable struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, float, array, object
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default"`
}

// ResponseSchema is the JSON shape a prompt asks the model to return.
type ResponseSchema struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	JSONSchema string `json:"json_schema"`
}

// PromptExecutionContext holds runtime values for prompt execution
type PromptExecutionContext struct {
	Variables map[string]interface{}
}

// NewContext creates a new execution context
func NewContext() *PromptExecutionContext {
	return &PromptExecutionContext{
		Variables: make(map[string]interface{}),
	}
}

// Set adds a variable to the context
func (c *PromptExecutionContext) Set(key string, value interface{}) *PromptExecutionContext {
	c.Variables[key] = value
	return c
}

// Known prompt identifiers.
const (
	AnalysisInitial   = "analysis.initial"
	AnalysisReact     = "analysis.react"
	AnalysisChallenge = "analysis.challenge"
)
