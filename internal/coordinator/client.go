package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gazecue/internal/domain"
)

const maxErrorBody = 512

// Config controls the coordinator HTTP client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the remote session coordinator and frame scorer. It
// implements ports.SessionCoordinator, ports.InstructionSource and
// ports.FrameScorer.
type Client struct {
	base string
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("coordinator base URL is not configured")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid coordinator base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, http: httpClient}, nil
}

// BaseURL returns the normalized coordinator base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// MediaURL resolves a coordinator media path against the base URL.
func (c *Client) MediaURL(ref string) string {
	return ResolveMediaURL(c.base, ref)
}

func (c *Client) StartSession(ctx context.Context, cfg domain.SessionConfig) (domain.StartResult, error) {
	payload := startPayload{
		StudentID:           cfg.StudentID,
		TotalTime:           cfg.StimulusSeconds,
		VoiceOnLowAttention: cfg.VoiceOnLow,
		VoiceThreshold:      cfg.VoiceThreshold,
	}
	var res startResponse
	if err := c.do(ctx, "start_stimulus", http.MethodPost, "/start_stimulus", payload, &res); err != nil {
		return domain.StartResult{}, err
	}
	return domain.StartResult{
		Action:   domain.InstructionKind(strings.TrimSpace(res.Action)),
		VoiceURL: res.VoiceURL,
	}, nil
}

func (c *Client) NextInstruction(ctx context.Context, studentID string) (domain.Instruction, error) {
	var res instructionPayload
	path := "/next_instruction/" + url.PathEscape(studentID)
	if err := c.do(ctx, "next_instruction", http.MethodGet, path, nil, &res); err != nil {
		return domain.Instruction{}, err
	}
	return res.instruction()
}

func (c *Client) SendFrame(ctx context.Context, sample domain.LandmarkSample) (domain.FrameResult, error) {
	var res frameResponse
	if err := c.do(ctx, "frame", http.MethodPost, "/frame", newFramePayload(sample), &res); err != nil {
		return domain.FrameResult{}, err
	}
	return domain.FrameResult{
		SmoothedAttention: res.SmoothedAttention,
		Alert:             res.Alert,
		AlertMessage:      res.AlertMessage,
	}, nil
}

func (c *Client) EndSession(ctx context.Context, studentID string) error {
	return c.do(ctx, "end_stimulus", http.MethodPost, "/end_stimulus", endPayload{StudentID: studentID}, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("coordinator: %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("coordinator: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coordinator: %s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: res.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("coordinator: %s: decode response: %w", op, err)
	}
	return nil
}

// ResolveMediaURL joins a coordinator-relative media path onto base. Absolute
// URLs pass through unchanged.
func ResolveMediaURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if parsed, err := url.Parse(ref); err == nil && parsed.IsAbs() {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}
