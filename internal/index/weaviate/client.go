package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maraichr/docpipe/internal/index"
)

const defaultTimeout = 10 * time.Second

// Client implements index.VectorIndex against the Weaviate REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ index.VectorIndex = (*Client)(nil)

func NewClient(baseURL string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("WEAVIATE_URL is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}, nil
}

func (c *Client) Backend() string { return "weaviate" }

func (c *Client) Close() {}

type property struct {
	Name     string   `json:"name"`
	DataType []string `json:"dataType"`
}

type class struct {
	Class      string     `json:"class"`
	Vectorizer string     `json:"vectorizer,omitempty"`
	Properties []property `json:"properties,omitempty"`
}

type schemaResponse struct {
	Classes []class `json:"classes"`
}

// EnsureSchema creates the chunk class (no vectorizer, vectors are supplied) if
// it is missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	var schema schemaResponse
	if err := c.do(ctx, http.MethodGet, "/v1/schema", nil, &schema); err != nil {
		return fmt.Errorf("get schema: %w", err)
	}
	for _, cl := range schema.Classes {
		if cl.Class == index.ClassName {
			return nil
		}
	}

	text := []string{"text"}
	def := class{
		Class:      index.ClassName,
		Vectorizer: "none",
		Properties: []property{
			{Name: "chunk_id", DataType: text},
			{Name: "doc_id", DataType: text},
			{Name: "chunk_text", DataType: text},
			{Name: "source_key", DataType: text},
			{Name: "security_clearance", DataType: text},
		},
	}
	if err := c.do(ctx, http.MethodPost, "/v1/schema", def, nil); err != nil {
		return fmt.Errorf("create class %s: %w", index.ClassName, err)
	}
	c.logger.Info("weaviate class created", slog.String("class", index.ClassName))
	return nil
}

type objectRequest struct {
	Class      string            `json:"class"`
	ID         string            `json:"id"`
	Vector     []float32         `json:"vector"`
	Properties map[string]string `json:"properties"`
}

// Upsert replaces the object at the chunk's stable id, creating it when the
// server reports it missing.
func (c *Client) Upsert(ctx context.Context, obj index.Object) error {
	id, err := index.ObjectID(obj.ChunkID)
	if err != nil {
		return err
	}
	req := objectRequest{
		Class:  index.ClassName,
		ID:     id.String(),
		Vector: obj.Vector,
		Properties: map[string]string{
			"chunk_id":           obj.ChunkID,
			"doc_id":             obj.DocID,
			"chunk_text":         obj.ChunkText,
			"source_key":         obj.SourceKey,
			"security_clearance": obj.SecurityClearance,
		},
	}

	err = c.do(ctx, http.MethodPut, "/v1/objects/"+index.ClassName+"/"+id.String(), req, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		err = c.do(ctx, http.MethodPost, "/v1/objects", req, nil)
	}
	if err != nil {
		return fmt.Errorf("upsert chunk %s: %w", obj.ChunkID, err)
	}
	return nil
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("weaviate API error (status %d): %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(bytes.TrimSpace(respBody))
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return &apiError{Status: resp.StatusCode, Body: snippet}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
