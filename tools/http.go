package tools

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/forgekeeper/agentcore/domain"
)

// HTTPFetchTool performs a GET request, used for tasks that need to pull a
// remote artifact. It has no workspace-path surface, but still respects
// the invocation's context deadline.
type HTTPFetchTool struct {
	client *http.Client
}

func NewHTTPFetchTool() *HTTPFetchTool {
	return &HTTPFetchTool{client: &http.Client{Timeout: 30 * time.Second}}
}

func (t *HTTPFetchTool) Info() Info {
	return Info{
		Name:        "http_fetch",
		Description: "Fetch a URL over HTTP GET and return its body",
		Parameters: []Parameter{
			{Name: "url", Type: "string", Description: "URL to fetch", Required: true},
		},
	}
}

func (t *HTTPFetchTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	url, _ := args["url"].(string)
	if url == "" {
		return Result{OK: false, Error: &domain.ToolError{Tool: "http_fetch", Name: "invalid_args", Message: "url is required"}}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{OK: false, Error: &domain.ToolError{Tool: "http_fetch", Name: "invalid_args", Message: err.Error()}}, nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		name := "network"
		if ctx.Err() != nil {
			name = "timeout"
		}
		return Result{OK: false, Error: &domain.ToolError{Tool: "http_fetch", Name: name, Message: err.Error()}}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{OK: false, Error: &domain.ToolError{Tool: "http_fetch", Name: "network", Message: err.Error()}}, nil
	}

	code := resp.StatusCode
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return Result{OK: false, Error: &domain.ToolError{Tool: "http_fetch", Name: "auth", HTTPCode: &code, Message: resp.Status}}, nil
	}
	if code == http.StatusTooManyRequests {
		return Result{OK: false, Error: &domain.ToolError{Tool: "http_fetch", Name: "rate_limit", HTTPCode: &code, Message: resp.Status}}, nil
	}
	if code >= 400 {
		return Result{OK: false, Error: &domain.ToolError{Tool: "http_fetch", Name: "network", HTTPCode: &code, Message: resp.Status}}, nil
	}

	return Result{OK: true, Output: string(body)}, nil
}
