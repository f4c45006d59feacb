package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
	"github.com/dropushan1/Video-Agent/internal/core/ports"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Client submits item batches to the Gemini generateContent endpoint and
// maps quota depletion to domain.ErrQuotaExhausted so the pipeline can
// terminate the run instead of burning retries against an empty
// allowance.
type Client struct {
	baseURL    string
	model      string
	ring       *KeyRing
	registry   ports.VocabularyRegistry
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Executor   *resilience.Executor
}

func New(baseURL, model string, ring *KeyRing, registry ports.VocabularyRegistry, options Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		ring:       ring,
		registry:   registry,
		httpClient: httpClient,
		limiter:    options.Limiter,
		executor:   options.Executor,
	}
}

func (c *Client) ClassifyBatch(ctx context.Context, items []domain.BatchItem) ([]domain.ClassificationResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	vocab, err := c.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary for prompt: %w", err)
	}
	prompt, err := buildBatchPrompt(vocab, items)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	// One credential per call; the ring advances regardless of outcome.
	key := c.ring.Next()

	var raw string
	call := func(callCtx context.Context) error {
		text, genErr := c.generate(callCtx, key, prompt)
		if genErr != nil {
			return genErr
		}
		raw = text
		return nil
	}
	if c.executor != nil {
		err = c.executor.Execute(ctx, "gemini.generate", call, classifyGeminiError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if isQuotaError(err) {
			return nil, domain.WrapError(domain.ErrQuotaExhausted, "classify batch", err)
		}
		return nil, wrapTemporaryIfNeeded("classify batch", err)
	}

	return parseResults(raw)
}

func (c *Client) generate(ctx context.Context, key, prompt string) (string, error) {
	reqBody := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{
			Operation:  "generate",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse generate response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("generate response has no candidates")
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return strings.TrimSpace(text.String()), nil
}

// newValueMarker is the wire-level convention the classifier uses to tag
// values absent from the prompted vocabulary. It is stripped here; the
// rest of the system only ever sees the structured NewFields flags.
const newValueMarker = "(NEW)"

type wireResult struct {
	ID          string `json:"id"`
	Title       string `json:"Title"`
	Summary     string `json:"Summary"`
	Category    string `json:"Category"`
	Tags        string `json:"Tags"`
	Types       string `json:"Types"`
	RefinedText string `json:"Refined Text"`
}

func parseResults(raw string) ([]domain.ClassificationResult, error) {
	var wire []wireResult
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &wire); err != nil {
		return nil, fmt.Errorf("parse classification json: %w", err)
	}

	results := make([]domain.ClassificationResult, 0, len(wire))
	for _, w := range wire {
		result := domain.ClassificationResult{
			ID:          w.ID,
			Title:       w.Title,
			Summary:     w.Summary,
			RefinedText: w.RefinedText,
		}
		result.Category, result.NewFields = stripMarker(w.Category, domain.FieldCategory, result.NewFields)
		result.Tags, result.NewFields = stripMarker(w.Tags, domain.FieldTags, result.NewFields)
		result.Types, result.NewFields = stripMarker(w.Types, domain.FieldTypes, result.NewFields)
		results = append(results, result)
	}
	return results, nil
}

func stripMarker(value string, field domain.VocabularyField, flags []domain.VocabularyField) (string, []domain.VocabularyField) {
	if !strings.Contains(value, newValueMarker) {
		return strings.TrimSpace(value), flags
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, newValueMarker, ""))
	return cleaned, append(flags, field)
}

func extractJSONArray(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
