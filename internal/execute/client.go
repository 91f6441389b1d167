// Package execute proxies source code to a remote execution service.
package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

var (
	ErrNotConfigured       = errors.New("code execution service not configured")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrTimeout             = errors.New("code execution timed out")
)

// versionIndex per language, as the execution service expects it
var languages = map[string]string{
	"python3": "3",
	"java":    "3",
	"cpp":     "4",
	"nodejs":  "3",
	"c":       "4",
	"ruby":    "3",
	"go":      "3",
	"scala":   "3",
	"bash":    "3",
	"sql":     "3",
	"pascal":  "2",
	"csharp":  "3",
	"php":     "3",
	"swift":   "3",
	"rust":    "3",
	"r":       "3",
}

// Languages lists the supported language names, sorted
func Languages() []string {
	out := make([]string, 0, len(languages))
	for l := range languages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether language has a version entry
func Supported(language string) bool {
	_, ok := languages[language]
	return ok
}

// Request is source code plus the language to run it as
type Request struct {
	Code     string
	Language string
}

// Result is what the execution service reported
type Result struct {
	Output     string `json:"output"`
	StatusCode int    `json:"statusCode"`
	Memory     string `json:"memory,omitempty"`
	CPUTime    string `json:"cpuTime,omitempty"`
	Error      string `json:"error,omitempty"`
}

// UpstreamError is a non-2xx answer from the execution service
type UpstreamError struct {
	Status  int
	Message string
	Output  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("execution service returned %d: %s", e.Status, e.Message)
}

type Client struct {
	http         *http.Client
	url          string
	clientID     string
	clientSecret string
	log          *slog.Logger
}

// NewClient builds an execution client; empty credentials leave it unconfigured
func NewClient(url, clientID, clientSecret string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		http:         &http.Client{Timeout: timeout},
		url:          url,
		clientID:     clientID,
		clientSecret: clientSecret,
		log:          log,
	}
}

type upstreamRequest struct {
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// Execute runs req on the remote service
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return Result{}, ErrNotConfigured
	}
	version, ok := languages[req.Language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	body, err := json.Marshal(upstreamRequest{
		Script:       req.Code,
		Language:     req.Language,
		VersionIndex: version,
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
	})
	if err != nil {
		return Result{}, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		if isTimeout(err) {
			return Result{}, ErrTimeout
		}
		return Result{}, fmt.Errorf("execution service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read execution response: %w", err)
	}

	var res Result
	decodeErr := json.Unmarshal(raw, &res)

	if resp.StatusCode >= 300 {
		msg := res.Error
		if msg == "" {
			msg = "compilation failed"
		}
		return Result{}, &UpstreamError{Status: resp.StatusCode, Message: msg, Output: res.Output}
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("decode execution response: %w", decodeErr)
	}

	if res.StatusCode != 0 && res.StatusCode != http.StatusOK && res.Output == "" {
		msg := res.Error
		if msg == "" {
			msg = "Compilation failed"
		}
		res.Output = "Error: " + msg
	}
	c.log.Info("execute.done", "language", req.Language, "status", res.StatusCode, "took", time.Since(start))
	return res, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
