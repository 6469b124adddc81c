package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Message is the union of every field a stage message may carry. Which fields are
// present on the wire is decided by the Schema the message is encoded with.
type Message struct {
	StorageKey    string `json:"storage_key,omitempty"`
	EmbeddingsKey string `json:"embeddings_key,omitempty"`
	DocID         string `json:"doc_id,omitempty"`
	Error         string `json:"error,omitempty"`
	FailedAt      string `json:"failed_at,omitempty"`
}

// Key returns the object key this message refers to.
func (m Message) Key() string {
	if m.EmbeddingsKey != "" {
		return m.EmbeddingsKey
	}
	return m.StorageKey
}

// Failed returns a copy of m carrying a dead-letter error and timestamp.
func (m Message) Failed(errMsg, failedAt string) Message {
	m.Error = errMsg
	m.FailedAt = failedAt
	return m
}

// Retry returns a copy of m with dead-letter fields removed.
func (m Message) Retry() Message {
	m.Error = ""
	m.FailedAt = ""
	return m
}

func (m Message) field(name string) string {
	switch name {
	case FieldStorageKey:
		return m.StorageKey
	case FieldEmbeddingsKey:
		return m.EmbeddingsKey
	case FieldDocID:
		return m.DocID
	case FieldError:
		return m.Error
	case FieldFailedAt:
		return m.FailedAt
	}
	return ""
}

// Wire field names.
const (
	FieldStorageKey    = "storage_key"
	FieldEmbeddingsKey = "embeddings_key"
	FieldDocID         = "doc_id"
	FieldError         = "error"
	FieldFailedAt      = "failed_at"
)

// Schema names the exact set of string fields a message must carry.
type Schema struct {
	Name   string
	Fields []string
}

// Known schemas.
var (
	SchemaNone               = Schema{Name: "none"}
	SchemaStorageKey         = Schema{Name: "storage_key", Fields: []string{FieldStorageKey}}
	SchemaIndexRequest       = Schema{Name: "index_request", Fields: []string{FieldDocID, FieldEmbeddingsKey}}
	SchemaStorageKeyFailed   = Schema{Name: "storage_key_failed", Fields: []string{FieldError, FieldFailedAt, FieldStorageKey}}
	SchemaIndexRequestFailed = Schema{Name: "index_request_failed", Fields: []string{FieldDocID, FieldEmbeddingsKey, FieldError, FieldFailedAt}}
)

// IsNone reports whether s is the "no queue" sentinel schema.
func (s Schema) IsNone() bool { return len(s.Fields) == 0 }

// Equal compares schemas by field set.
func (s Schema) Equal(o Schema) bool {
	if len(s.Fields) != len(o.Fields) {
		return false
	}
	a, b := sortedCopy(s.Fields), sortedCopy(o.Fields)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Failed returns the dead-letter variant of s.
func (s Schema) Failed() Schema {
	switch s.Name {
	case SchemaStorageKey.Name, SchemaNone.Name:
		return SchemaStorageKeyFailed
	case SchemaIndexRequest.Name:
		return SchemaIndexRequestFailed
	}
	return s
}

// Encode validates m against s and renders it as JSON with sorted keys.
func (s Schema) Encode(m Message) ([]byte, error) {
	if s.IsNone() {
		return nil, &SchemaError{Schema: s.Name, Reason: "schema carries no messages"}
	}
	payload := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		v := m.field(f)
		if v == "" {
			return nil, &SchemaError{Schema: s.Name, Field: f, Reason: "missing required field"}
		}
		payload[f] = v
	}
	// encoding/json writes map keys in sorted order.
	return json.Marshal(payload)
}

// Decode parses body and checks that it carries exactly the schema's fields, all
// non-empty strings.
func (s Schema) Decode(body []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Message{}, &SchemaError{Schema: s.Name, Reason: "invalid JSON", Err: err}
	}
	for _, f := range s.Fields {
		v, ok := raw[f]
		if !ok {
			return Message{}, &SchemaError{Schema: s.Name, Field: f, Reason: "missing required field"}
		}
		str, ok := v.(string)
		if !ok || str == "" {
			return Message{}, &SchemaError{Schema: s.Name, Field: f, Reason: "must be a non-empty string"}
		}
	}
	if len(raw) != len(s.Fields) {
		var extra []string
		for k := range raw {
			if !contains(s.Fields, k) {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return Message{}, &SchemaError{Schema: s.Name, Field: strings.Join(extra, ","), Reason: "unexpected field"}
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, &SchemaError{Schema: s.Name, Reason: "decode message", Err: err}
	}
	return m, nil
}

// SchemaError reports a payload that does not match the schema bound to a queue.
type SchemaError struct {
	Queue  string
	Schema string
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema ")
	b.WriteString(e.Schema)
	if e.Queue != "" {
		fmt.Fprintf(&b, " (queue %s)", e.Queue)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Field != "" {
		fmt.Fprintf(&b, " %q", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
