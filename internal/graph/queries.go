package graph

// Cypher query constants for Neo4j operations.
const (
	CreateConstraintDatasetID = `CREATE CONSTRAINT dataset_id IF NOT EXISTS FOR (d:Dataset) REQUIRE d.id IS UNIQUE`
	CreateConstraintJobID     = `CREATE CONSTRAINT job_id IF NOT EXISTS FOR (j:Job) REQUIRE j.id IS UNIQUE`
	CreateConstraintRunID     = `CREATE CONSTRAINT run_id IF NOT EXISTS FOR (r:Run) REQUIRE r.id IS UNIQUE`

	// UpsertRun merges the job and run nodes and records the latest run state.
	UpsertRun = `
MERGE (j:Job {id: $jobId})
SET j.namespace = $jobNamespace,
    j.name = $jobName
MERGE (r:Run {id: $runId})
SET r.state = $state,
    r.eventTime = $eventTime,
    r.error = $error
MERGE (r)-[:RUN_OF]->(j)
`

	// UpsertInputs links consumed datasets to the job.
	UpsertInputs = `
UNWIND $datasets AS ds
MERGE (d:Dataset {id: ds.id})
SET d.namespace = ds.namespace,
    d.name = ds.name
WITH d
MATCH (j:Job {id: $jobId})
MERGE (d)-[:INPUT_TO]->(j)
`

	// UpsertOutputs links produced datasets to the job.
	UpsertOutputs = `
UNWIND $datasets AS ds
MERGE (d:Dataset {id: ds.id})
SET d.namespace = ds.namespace,
    d.name = ds.name
WITH d
MATCH (j:Job {id: $jobId})
MERGE (j)-[:PRODUCES]->(d)
`

	// UpsertFlows records dataset-to-dataset edges for one run.
	UpsertFlows = `
UNWIND $flows AS f
MATCH (src:Dataset {id: f.sourceId})
MATCH (tgt:Dataset {id: f.targetId})
MERGE (src)-[r:FLOWS_TO {job: f.job}]->(tgt)
SET r.runId = f.runId
`

	// LineageUpstream finds every dataset the target was derived from.
	LineageUpstream = `
MATCH path = (upstream)-[:FLOWS_TO*1..%d]->(target:Dataset {id: $datasetId})
RETURN path
`

	// LineageDownstream finds every dataset derived from the source.
	LineageDownstream = `
MATCH path = (source:Dataset {id: $datasetId})-[:FLOWS_TO*1..%d]->(downstream)
RETURN path
`

	// LineageBoth finds both upstream and downstream connections.
	LineageBoth = `
MATCH path = (upstream)-[:FLOWS_TO*1..%d]->(target:Dataset {id: $datasetId})
RETURN path
UNION
MATCH path = (source:Dataset {id: $datasetId})-[:FLOWS_TO*1..%d]->(downstream)
RETURN path
`
)
