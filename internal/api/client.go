package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/youruser/parley/internal/logging"
)

var (
	ErrRequestFailed = errors.New("backend request failed")
	ErrEmptyReply    = errors.New("backend returned an empty reply")
	log              = logging.Get()
)

const defaultRequestTimeout = 60 * time.Second

// purposeMainChat tags every chat request issued by the session controller.
const purposeMainChat = "main_chat"

// Client handles communication with the parley backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backend client. A zero timeout selects the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Chat sends the windowed context plus the current turn and returns the
// assistant reply. A 2xx response without content is ErrEmptyReply; any
// non-2xx response is ErrRequestFailed carrying the flattened detail.
func (c *Client) Chat(ctx context.Context, model string, messages []ChatMessage) (*ChatReply, error) {
	reqBody := ChatRequest{
		Messages:  messages,
		Purpose:   purposeMainChat,
		ModelName: model,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Request("/api/chat", fmt.Sprintf("model=%s messages=%d", model, len(messages)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRequestFailed, err)
	}

	log.Response("/api/chat", fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := flattenErrorBody(resp.StatusCode, body)
		log.Error("API error %d: %s", resp.StatusCode, detail)
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, detail)
	}

	var reply ChatReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed response body", ErrEmptyReply)
	}
	if reply.Content == "" {
		return nil, ErrEmptyReply
	}

	return &reply, nil
}

// Models fetches the backend's advertised model identifiers. An empty or
// missing list is returned as-is; it is the caller's signal that sending
// must stay disabled.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/models", nil)
	if err != nil {
		return nil, err
	}

	log.Request("/api/models", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRequestFailed, err)
	}

	log.Response("/api/models", fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := flattenErrorBody(resp.StatusCode, body)
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, detail)
	}

	var models ModelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("%w: malformed models response", ErrRequestFailed)
	}

	return models.Models, nil
}

// Upload sends a file body to the backend so large text content can be
// referenced server-side instead of inlined into the chat turn.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Request("/api/upload", filename)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRequestFailed, err)
	}

	log.Response("/api/upload", fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := flattenErrorBody(resp.StatusCode, body)
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, detail)
	}

	var upload UploadResponse
	if err := json.Unmarshal(body, &upload); err != nil {
		return nil, fmt.Errorf("%w: malformed upload response", ErrRequestFailed)
	}

	return &upload, nil
}
