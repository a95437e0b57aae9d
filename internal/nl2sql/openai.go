package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIGenerator generates SQL through an OpenAI-compatible chat
// completion endpoint. It also implements Explainer.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAIGenerator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	content, err := g.complete(ctx, []chatMessage{
		{Role: "system", Content: generationSystemPrompt(req)},
		{Role: "user", Content: generationUserPrompt(req)},
	}, g.temperature, g.maxTokens)
	if err != nil {
		return Result{}, &GenerationError{Reason: "chat completion failed", Err: err}
	}

	sql := SanitizeStatement(content)
	if sql == "" {
		return Result{}, &GenerationError{Reason: "model returned no usable SQL"}
	}
	return Result{SQL: sql, Model: g.model}, nil
}

// Explain asks for a 2-3 sentence business explanation. Any failure
// collapses into the neutral fallback; this path never errors.
func (g *OpenAIGenerator) Explain(ctx context.Context, question, resultSummary, database string) string {
	prompt := fmt.Sprintf(
		"Database: %s\nUser Question: %s\n\nQuery Results Summary: %s\n\nProvide a concise, business-friendly explanation of these results in 2-3 sentences. Focus on key insights and what the numbers mean.",
		database, question, resultSummary,
	)
	content, err := g.complete(ctx, []chatMessage{
		{Role: "system", Content: "You are a data analyst explaining SQL query results to business users."},
		{Role: "user", Content: prompt},
	}, 0.7, 200)
	if err != nil || strings.TrimSpace(content) == "" {
		return NeutralExplanation
	}
	return strings.TrimSpace(content)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *OpenAIGenerator) complete(ctx context.Context, messages []chatMessage, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       g.model,
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	choice := parsed.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", fmt.Errorf("blocked or empty completion (finish_reason=%s)", choice.FinishReason)
	}
	return choice.Message.Content, nil
}

func generationSystemPrompt(req Request) string {
	return fmt.Sprintf(
		"You are a SQL expert. Generate SQL queries using ONLY the tables and columns that exist in the actual database schema.\n\n%s\n\nCRITICAL RULES:\n"+
			"1. Use ONLY the table names and column names shown in the schema above\n"+
			"2. Do NOT invent or assume table or column names that are not listed\n"+
			"3. Generate ONLY the SQL code, no explanations, no markdown\n"+
			"4. Emit exactly one statement\n"+
			"5. %s\n"+
			"6. %s\n"+
			"7. If unsure about columns, use SELECT * but add a row limit",
		req.Grounding,
		req.Dialect.RowLimitHint(),
		req.Dialect.QuoteHint(),
	)
}

func generationUserPrompt(req Request) string {
	var b strings.Builder
	if len(req.History) > 0 {
		b.WriteString("Previous context:\n")
		for _, line := range req.History {
			b.WriteString("- " + line + "\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Natural Language Request: %q\n\nSQL Query:", strings.TrimSpace(req.NaturalLanguage))
	return b.String()
}
