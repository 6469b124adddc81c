// Package lineage emits OpenLineage run events for each unit of stage work.
package lineage

import (
	"fmt"
	"strings"
)

type EventType string

const (
	EventStart    EventType = "START"
	EventComplete EventType = "COMPLETE"
	EventFail     EventType = "FAIL"
)

// Schema URLs stamped on events and facets.
const (
	RunEventSchemaURL      = "https://openlineage.io/spec/1-0-5/OpenLineage.json#/definitions/RunEvent"
	ErrorMessageSchemaURL  = "https://openlineage.io/spec/facets/1-0-0/ErrorMessageRunFacet.json"
	DocpipeFacetSchemaURL  = "https://github.com/maraichr/docpipe/schemas/DocpipeRunFacet.json"
	errorMessageFacetName  = "errorMessage"
	docpipeFacetName       = "docpipe"
	programmingLanguageTag = "go"
)

// RunEvent is the OpenLineage RunEvent wire shape.
type RunEvent struct {
	EventType EventType `json:"eventType"`
	EventTime string    `json:"eventTime"`
	Run       RunRef    `json:"run"`
	Job       JobRef    `json:"job"`
	Producer  string    `json:"producer"`
	SchemaURL string    `json:"schemaURL"`
	Inputs    []Dataset `json:"inputs"`
	Outputs   []Dataset `json:"outputs"`
}

type RunRef struct {
	RunID  string         `json:"runId"`
	Facets map[string]any `json:"facets"`
}

type JobRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// Dataset identifies one object store location.
type Dataset struct {
	Namespace string         `json:"namespace"`
	Name      string         `json:"name"`
	Facets    map[string]any `json:"facets,omitempty"`
}

// DatasetFromURI splits s3://bucket/key into namespace s3://bucket and name key.
func DatasetFromURI(uri string) (Dataset, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return Dataset{}, fmt.Errorf("dataset uri %q: not an s3:// uri", uri)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	key = strings.TrimLeft(key, "/")
	if !ok || bucket == "" || key == "" {
		return Dataset{}, fmt.Errorf("dataset uri %q: missing bucket or key", uri)
	}
	return Dataset{Namespace: "s3://" + bucket, Name: key}, nil
}

// S3Dataset builds a dataset for key in bucket.
func S3Dataset(bucket, key string) Dataset {
	return Dataset{Namespace: "s3://" + strings.TrimRight(bucket, "/"), Name: strings.TrimLeft(key, "/")}
}
