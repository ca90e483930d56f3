// Package completion is the boundary to the external language-completion
// service. The engine hands it an ordered message list and gets back one
// reply string; everything behind the HTTP call is opaque.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role values for Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the ordered prompt list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized completion request.
type Request struct {
	UserID   string    `json:"user_id"`
	Messages []Message `json:"messages"`
}

// Response is the single reply string the service returns.
type Response struct {
	Text string `json:"text"`
}

// Client produces one assistant reply for a prompt list.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	HTTPURL string
}

// NewClient builds a client for the configured mode. Auto prefers the HTTP
// endpoint when one is configured and otherwise degrades to the mock.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackClient(NewHTTPClient(cfg.HTTPURL), NewMockClient()), nil
		}
		return NewMockClient(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("completion HTTP url is required for http mode")
		}
		return NewHTTPClient(cfg.HTTPURL), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported completion mode %q", cfg.Mode)
	}
}
