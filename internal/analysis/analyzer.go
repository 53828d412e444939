package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"triagegate/internal/llm"

	"go.uber.org/zap"
)

// Analyzer produces a structured result for a piece of free text.
type Analyzer interface {
	Analyze(ctx context.Context, req *Request) (*Result, error)
}

const systemPrompt = `You classify short clinical messages. Respond with a single JSON object
with the fields: intent, urgency, entities (array of strings), summary.
Respond with JSON only, no prose.`

// LLMAnalyzer runs the analysis through the upstream completion API.
type LLMAnalyzer struct {
	client llm.Client
	model  string
	logger *zap.Logger
}

// NewLLMAnalyzer creates an analyzer backed by the given client and model.
func NewLLMAnalyzer(client llm.Client, model string, logger *zap.Logger) *LLMAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMAnalyzer{
		client: client,
		model:  model,
		logger: logger.Named("analyzer"),
	}
}

// Analyze prompts the completion API and parses the structured result
// from its reply.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("analyzer: invalid request: %w", err)
	}

	resp, err := a.client.Complete(ctx, &llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: req.Text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: upstream call: %w", err)
	}

	result, err := parseResult(resp.Content)
	if err != nil {
		a.logger.Warn("unparseable analysis reply",
			zap.String("model", a.model),
			zap.Error(err),
		)
		return nil, fmt.Errorf("analyzer: parse reply: %w", err)
	}

	return result, nil
}

// parseResult extracts the JSON object from the model reply. Models
// sometimes wrap the object in code fences or commentary, so we cut to
// the outermost braces before unmarshalling.
func parseResult(content string) (*Result, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var result Result
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, err
	}
	if result.Intent == "" {
		return nil, fmt.Errorf("reply missing intent")
	}
	return &result, nil
}
