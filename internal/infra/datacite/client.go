// Package datacite talks to the DataCite REST API and maps repository records
// to DataCite metadata.
package datacite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"scholarsphere/config"
)

const contentType = "application/vnd.api+json"

// ClientError is a non-2xx answer from DataCite.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("datacite responded %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL  string
	prefix   string
	username string
	password string
	http     *http.Client
}

func NewClient(cfg config.DataCite) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		prefix:   cfg.Prefix,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type document struct {
	Data documentData `json:"data"`
}

type documentData struct {
	ID         string     `json:"id,omitempty"`
	Type       string     `json:"type"`
	Attributes Attributes `json:"attributes"`
}

// Register reserves a draft DOI under the configured prefix.
func (c *Client) Register(ctx context.Context) (string, Attributes, error) {
	body := document{Data: documentData{Type: "dois", Attributes: Attributes{"prefix": c.prefix}}}
	return c.send(ctx, http.MethodPost, "/dois", body)
}

// Publish moves a DOI to the findable state with md. A nil doi mints a new
// one; otherwise the existing DOI is updated.
func (c *Client) Publish(ctx context.Context, doi *string, md Attributes) (string, Attributes, error) {
	attrs := md.Clone()
	if attrs == nil {
		attrs = Attributes{}
	}
	attrs["event"] = "publish"

	if doi == nil {
		attrs["prefix"] = c.prefix
		return c.send(ctx, http.MethodPost, "/dois", document{Data: documentData{Type: "dois", Attributes: attrs}})
	}
	attrs["doi"] = *doi
	body := document{Data: documentData{ID: *doi, Type: "dois", Attributes: attrs}}
	return c.send(ctx, http.MethodPut, "/dois/"+url.PathEscape(*doi), body)
}

func (c *Client) send(ctx context.Context, method, path string, body document) (string, Attributes, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encode datacite request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("datacite %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read datacite response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &ClientError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out document
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", nil, fmt.Errorf("decode datacite response: %w", err)
	}
	doi := out.Data.ID
	if doi == "" {
		if s, ok := out.Data.Attributes["doi"].(string); ok {
			doi = s
		}
	}
	if doi == "" {
		return "", nil, &ClientError{StatusCode: resp.StatusCode, Body: "response carries no doi"}
	}
	return doi, out.Data.Attributes, nil
}
