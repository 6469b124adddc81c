package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// DatasetRef identifies a dataset node. ID is the s3:// uri.
type DatasetRef struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// RunRecord is one lineage event flattened for the graph.
type RunRecord struct {
	RunID        string
	JobNamespace string
	JobName      string
	State        string
	EventTime    string
	Error        string
	Inputs       []DatasetRef
	Outputs      []DatasetRef
}

// RecordRun writes the run, its job and the dataset edges it implies. Every
// statement merges, so replaying an event is harmless.
func (c *Client) RecordRun(ctx context.Context, rec RunRecord) error {
	session := c.writeSession(ctx)
	defer session.Close(ctx)

	jobID := rec.JobNamespace + "/" + rec.JobName
	var flows []map[string]any
	for _, in := range rec.Inputs {
		for _, out := range rec.Outputs {
			flows = append(flows, map[string]any{
				"sourceId": in.ID,
				"targetId": out.ID,
				"job":      rec.JobName,
				"runId":    rec.RunID,
			})
		}
	}

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, UpsertRun, map[string]any{
			"jobId":        jobID,
			"jobNamespace": rec.JobNamespace,
			"jobName":      rec.JobName,
			"runId":        rec.RunID,
			"state":        rec.State,
			"eventTime":    rec.EventTime,
			"error":        rec.Error,
		}); err != nil {
			return struct{}{}, err
		}
		if len(rec.Inputs) > 0 {
			if _, err := tx.Run(ctx, UpsertInputs, map[string]any{"jobId": jobID, "datasets": datasetParams(rec.Inputs)}); err != nil {
				return struct{}{}, err
			}
		}
		if len(rec.Outputs) > 0 {
			if _, err := tx.Run(ctx, UpsertOutputs, map[string]any{"jobId": jobID, "datasets": datasetParams(rec.Outputs)}); err != nil {
				return struct{}{}, err
			}
		}
		if len(flows) > 0 {
			if _, err := tx.Run(ctx, UpsertFlows, map[string]any{"flows": flows}); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}
	return nil
}

func datasetParams(ds []DatasetRef) []map[string]any {
	out := make([]map[string]any, len(ds))
	for i, d := range ds {
		out[i] = map[string]any{"id": d.ID, "namespace": d.Namespace, "name": d.Name}
	}
	return out
}

// LineageEdge is one FLOWS_TO relationship.
type LineageEdge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Job      string `json:"job"`
	RunID    string `json:"run_id"`
}

// LineageResult contains the result of a lineage query.
type LineageResult struct {
	Nodes  []DatasetRef  `json:"nodes"`
	Edges  []LineageEdge `json:"edges"`
	RootID string        `json:"root_id"`
}

// Lineage queries the graph for datasets upstream and/or downstream of datasetID.
func (c *Client) Lineage(ctx context.Context, datasetID, direction string, maxDepth int) (*LineageResult, error) {
	if maxDepth <= 0 || maxDepth > 10 {
		maxDepth = 5
	}

	session := c.readSession(ctx)
	defer session.Close(ctx)

	var query string
	switch direction {
	case "upstream":
		query = fmt.Sprintf(LineageUpstream, maxDepth)
	case "downstream":
		query = fmt.Sprintf(LineageDownstream, maxDepth)
	default:
		query = fmt.Sprintf(LineageBoth, maxDepth, maxDepth)
	}

	result, err := neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, map[string]any{"datasetId": datasetID})
		if err != nil {
			return nil, err
		}

		nodeMap := make(map[string]DatasetRef)
		var edges []LineageEdge
		for records.Next(ctx) {
			pathVal, ok := records.Record().Get("path")
			if !ok {
				continue
			}
			path, ok := pathVal.(dbtype.Path)
			if !ok {
				continue
			}

			elemToID := make(map[string]string)
			for _, node := range path.Nodes {
				id, _ := node.Props["id"].(string)
				if id == "" {
					continue
				}
				elemToID[node.ElementId] = id
				if _, exists := nodeMap[id]; exists {
					continue
				}
				ns, _ := node.Props["namespace"].(string)
				name, _ := node.Props["name"].(string)
				nodeMap[id] = DatasetRef{ID: id, Namespace: ns, Name: name}
			}

			for _, rel := range path.Relationships {
				job, _ := rel.Props["job"].(string)
				runID, _ := rel.Props["runId"].(string)
				startID := elemToID[rel.StartElementId]
				endID := elemToID[rel.EndElementId]
				if startID != "" && endID != "" {
					edges = append(edges, LineageEdge{SourceID: startID, TargetID: endID, Job: job, RunID: runID})
				}
			}
		}
		if err := records.Err(); err != nil {
			return nil, err
		}

		nodes := make([]DatasetRef, 0, len(nodeMap))
		for _, n := range nodeMap {
			nodes = append(nodes, n)
		}
		return &LineageResult{Nodes: nodes, Edges: edges, RootID: datasetID}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("lineage query: %w", err)
	}

	return result.(*LineageResult), nil
}
