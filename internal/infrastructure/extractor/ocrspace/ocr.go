package ocrspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultEndpoint = "https://api.ocr.space/parse/image"

// OCR extracts text from images through the OCR.space parse endpoint.
type OCR struct {
	endpoint   string
	apiKey     string
	language   string
	httpClient *http.Client
}

type Options struct {
	HTTPClient *http.Client
	Language   string
}

func New(endpoint, apiKey string, options Options) *OCR {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	language := options.Language
	if language == "" {
		language = "eng"
	}
	return &OCR{
		endpoint:   endpoint,
		apiKey:     apiKey,
		language:   language,
		httpClient: httpClient,
	}
}

func (o *OCR) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("apikey", o.apiKey); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	if err := form.WriteField("language", o.language); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy image into form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ocr status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		OCRExitCode   int `json:"OCRExitCode"`
		ParsedResults []struct {
			ParsedText string `json:"ParsedText"`
		} `json:"ParsedResults"`
		ErrorMessage any `json:"ErrorMessage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse ocr response: %w", err)
	}
	if parsed.OCRExitCode != 1 || len(parsed.ParsedResults) == 0 {
		return "", fmt.Errorf("ocr rejected image: exit code %d: %v", parsed.OCRExitCode, parsed.ErrorMessage)
	}
	return strings.TrimSpace(parsed.ParsedResults[0].ParsedText), nil
}
