package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/grammar"
)

// GenerateRequest asks the backend to write a document for a job
type GenerateRequest struct {
	Kind        content.Kind `json:"document_type"`
	JobID       string       `json:"job_id,omitempty"`
	JobTitle    string       `json:"job_title,omitempty"`
	Company     string       `json:"company,omitempty"`
	Description string       `json:"job_description,omitempty"`
	Template    string       `json:"template,omitempty"`
	Tone        string       `json:"tone,omitempty"`
}

// GenerateResult is what a generation returns
type GenerateResult struct {
	Content   content.Content `json:"content"`
	Latex     string          `json:"latex"`
	PDFBase64 string          `json:"pdf_base64,omitempty"`
}

// PDF decodes the embedded PDF, if any
func (r *GenerateResult) PDF() ([]byte, error) {
	if r.PDFBase64 == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(r.PDFBase64)
	if err != nil {
		return nil, fmt.Errorf("decode generated pdf: %w", err)
	}
	return data, nil
}

type grammarRequest struct {
	Text string `json:"text"`
}

type grammarResponse struct {
	Issues []grammar.Issue `json:"issues"`
}

type compileRequest struct {
	Latex string `json:"latex"`
}

type compileResponse struct {
	PDFBase64 string `json:"pdf_base64"`
}

// CheckGrammar sends text for grammar analysis
func (c *Client) CheckGrammar(ctx context.Context, text string) ([]grammar.Issue, error) {
	var out grammarResponse
	err := c.doJSON(ctx, call{
		method:   http.MethodPost,
		path:     "/api/cover-letter/check-grammar/",
		endpoint: "grammar.check",
		body:     grammarRequest{Text: text},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Issues, nil
}

// Generate asks the backend for a new document
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var out GenerateResult
	err := c.doJSON(ctx, call{
		method:   http.MethodPost,
		path:     "/api/cover-letter/generate/",
		endpoint: "documents.generate",
		body:     req,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Content.Kind == "" {
		out.Content.Kind = req.Kind
	}
	return &out, nil
}

// Compile renders LaTeX source to PDF bytes
func (c *Client) Compile(ctx context.Context, latex string) ([]byte, error) {
	var out compileResponse
	err := c.doJSON(ctx, call{
		method:   http.MethodPost,
		path:     "/api/documents/compile/",
		endpoint: "documents.compile",
		body:     compileRequest{Latex: latex},
	}, &out)
	if err != nil {
		return nil, err
	}
	pdf, err := base64.StdEncoding.DecodeString(out.PDFBase64)
	if err != nil {
		return nil, fmt.Errorf("decode compiled pdf: %w", err)
	}
	return pdf, nil
}
