package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	engine "github.com/mzoric/voxjournal/core"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
)

const defaultRequestTimeout = 10 * time.Second

// Client stores finished session transcripts as journal entries over the
// journal service's HTTP API. It satisfies the engine's persistence
// interface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// entryPayload mirrors the journal service's entry schema. The content
// column holds what the user said; the full exchange rides along in
// ai_prompts as JSON for later browsing.
type entryPayload struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	AIPrompts string `json:"ai_prompts"`
}

// SaveTranscript stores one finished session as a journal entry. Sessions
// where the user never said anything are skipped.
func (c *Client) SaveTranscript(ctx context.Context, sessionType string, entries []engine.TranscriptEntry) error {
	ctx, span := tracer.Start(ctx, "save transcript")
	defer span.End()

	var userParts []string
	for _, entry := range entries {
		if entry.Role == engine.RoleUser {
			userParts = append(userParts, entry.Text)
		}
	}
	if len(userParts) == 0 {
		logger.Debug("skipping transcript with no user content", "session_type", sessionType)
		return nil
	}

	exchange, err := json.Marshal(entries)
	if err != nil {
		err = fmt.Errorf("failed to encode transcript: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	payload := entryPayload{
		Date:      time.Now().Format("2006-01-02"),
		Type:      sessionType,
		Content:   strings.Join(userParts, " "),
		AIPrompts: string(exchange),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		err = fmt.Errorf("failed to encode journal entry: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/entries", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build journal request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		err = fmt.Errorf("failed to reach journal service: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		err = fmt.Errorf("journal service rejected the entry (%s): %s", response.Status, strings.TrimSpace(string(detail)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	logger.Info("saved session transcript",
		"session_type", sessionType, "user_messages", len(userParts))
	return nil
}
