package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Rule is an automation rule that selects jobs and schedules submissions
type Rule struct {
	ID          int             `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsActive    bool            `json:"is_active"`
	Criteria    json.RawMessage `json:"criteria,omitempty"`
	Schedule    string          `json:"schedule,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// ListRules returns all automation rules. The backend answers either with a
// bare array or with a paginated {"results": [...]} envelope.
func (c *Client) ListRules(ctx context.Context) ([]Rule, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, call{method: http.MethodGet, path: "/automation/rules/", endpoint: "rules.list"}, &raw)
	if err != nil {
		return nil, err
	}

	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err == nil {
		return rules, nil
	}
	var page struct {
		Results []Rule `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode rules.list response: %w", err)
	}
	return page.Results, nil
}

// GetRule fetches one rule
func (c *Client) GetRule(ctx context.Context, id int) (*Rule, error) {
	var r Rule
	err := c.doJSON(ctx, call{method: http.MethodGet, path: rulePath(id), endpoint: "rules.get"}, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule creates a rule and returns the stored version
func (c *Client) CreateRule(ctx context.Context, r Rule) (*Rule, error) {
	var out Rule
	err := c.doJSON(ctx, call{method: http.MethodPost, path: "/automation/rules/", endpoint: "rules.create", body: r}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRule replaces rule id
func (c *Client) UpdateRule(ctx context.Context, id int, r Rule) (*Rule, error) {
	var out Rule
	err := c.doJSON(ctx, call{method: http.MethodPut, path: rulePath(id), endpoint: "rules.update", body: r}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRule removes rule id
func (c *Client) DeleteRule(ctx context.Context, id int) error {
	return c.doJSON(ctx, call{method: http.MethodDelete, path: rulePath(id), endpoint: "rules.delete"}, nil)
}

func rulePath(id int) string {
	return fmt.Sprintf("/automation/rules/%d/", id)
}
