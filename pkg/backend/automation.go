package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Package is a downloaded application package
type Package struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmissionStatus is the backend's answer to a submission action
type SubmissionStatus struct {
	ID      int    `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// RegeneratePackage asks the backend to rebuild an application package
func (c *Client) RegeneratePackage(ctx context.Context, id int) error {
	return c.doJSON(ctx, call{
		method:   http.MethodPost,
		path:     fmt.Sprintf("/automation/packages/%d/regenerate/", id),
		endpoint: "packages.regenerate",
	}, nil)
}

// DownloadPackage fetches the package archive. The filename comes from
// Content-Disposition and falls back to package-<id>.
func (c *Client) DownloadPackage(ctx context.Context, id int) (*Package, error) {
	resp, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     fmt.Sprintf("/automation/packages/%d/download/", id),
		endpoint: "packages.download",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read package %d: %w", id, err)
	}

	pkg := &Package{
		Filename:    fmt.Sprintf("package-%d", id),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			pkg.Filename = name
		}
	}
	return pkg, nil
}

// CancelSubmission cancels a scheduled submission
func (c *Client) CancelSubmission(ctx context.Context, id int) (*SubmissionStatus, error) {
	return c.submissionAction(ctx, id, "cancel")
}

// ExecuteSubmission runs a scheduled submission now
func (c *Client) ExecuteSubmission(ctx context.Context, id int) (*SubmissionStatus, error) {
	return c.submissionAction(ctx, id, "execute")
}

func (c *Client) submissionAction(ctx context.Context, id int, action string) (*SubmissionStatus, error) {
	out := SubmissionStatus{ID: id}
	err := c.doJSON(ctx, call{
		method:   http.MethodPost,
		path:     fmt.Sprintf("/automation/scheduled-submissions/%d/%s/", id, action),
		endpoint: "submissions." + action,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
