package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.assemblyai.com"

// Transcriber extracts speech text from audio and video files through the
// AssemblyAI HTTP API: upload the media, create a transcript job, then
// poll until it settles. An audio file with no recognizable speech yields
// an empty string, indistinguishable from a failed extraction by design.
type Transcriber struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

type Options struct {
	HTTPClient   *http.Client
	PollInterval time.Duration
}

func New(baseURL, apiKey string, options Options) *Transcriber {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	pollInterval := options.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &Transcriber{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   httpClient,
		pollInterval: pollInterval,
	}
}

func (t *Transcriber) Extract(ctx context.Context, path string) (string, error) {
	audioURL, err := t.upload(ctx, path)
	if err != nil {
		return "", err
	}
	transcriptID, err := t.createTranscript(ctx, audioURL)
	if err != nil {
		return "", err
	}
	return t.awaitTranscript(ctx, transcriptID)
}

func (t *Transcriber) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v2/upload", f)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var response struct {
		UploadURL string `json:"upload_url"`
	}
	if err := t.do(req, &response); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if response.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return response.UploadURL, nil
}

func (t *Transcriber) createTranscript(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"audio_url":     audioURL,
		"speech_model":  "nano",
		"language_code": "en",
	})
	if err != nil {
		return "", fmt.Errorf("marshal transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var response transcriptStatus
	if err := t.do(req, &response); err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("transcript response missing id")
	}
	return response.ID, nil
}

type transcriptStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func (t *Transcriber) awaitTranscript(ctx context.Context, id string) (string, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/v2/transcript/"+id, nil)
		if err != nil {
			return "", fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set("Authorization", t.apiKey)

		var status transcriptStatus
		if err := t.do(req, &status); err != nil {
			return "", fmt.Errorf("poll transcript: %w", err)
		}

		switch status.Status {
		case "completed":
			return strings.TrimSpace(status.Text), nil
		case "error":
			return "", fmt.Errorf("transcription failed: %s", status.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}

func (t *Transcriber) do(req *http.Request, out any) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
