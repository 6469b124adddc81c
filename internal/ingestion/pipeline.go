package ingestion

import (
	"fmt"

	"github.com/maraichr/docpipe/internal/config"
	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/embedding"
	"github.com/maraichr/docpipe/internal/index"
	"github.com/maraichr/docpipe/internal/parser"
)

// Deps are the stage-specific collaborators. Only the ones the requested stage
// uses need to be set.
type Deps struct {
	Env      Env
	Pipeline config.PipelineConfig
	Parsers  *parser.Registry
	Embedder embedding.Embedder
	Index    index.VectorIndex
}

// NewProcessor builds the processor for stage. out receives the stage's
// produce messages and may be nil for index_weaviate.
func NewProcessor(stage contract.Stage, deps Deps, out Publisher) (Processor, error) {
	switch stage {
	case contract.StageScan:
		return NewScanProcessor(deps.Env, out, deps.Pipeline.ScanExtensions), nil
	case contract.StageParseDocument:
		if deps.Parsers == nil {
			return nil, fmt.Errorf("stage %s: no parser registry", stage)
		}
		return NewParseProcessor(deps.Env, out, deps.Parsers, deps.Pipeline.ScanExtensions, DocumentDefaults{
			SourceType:        deps.Pipeline.SourceType,
			SecurityClearance: deps.Pipeline.SecurityClearance,
		}), nil
	case contract.StageChunkText:
		size := deps.Pipeline.ChunkTargetSize
		if size <= 0 {
			size = DefaultChunkTargetSize
		}
		return NewChunkProcessor(deps.Env, out, size), nil
	case contract.StageEmbedChunks:
		if deps.Embedder == nil {
			return nil, fmt.Errorf("stage %s: no embedder", stage)
		}
		return NewEmbedProcessor(deps.Env, out, deps.Embedder), nil
	case contract.StageIndexWeaviate:
		if deps.Index == nil {
			return nil, fmt.Errorf("stage %s: no vector index", stage)
		}
		return NewIndexProcessor(deps.Env, deps.Index), nil
	}
	return nil, fmt.Errorf("new processor %q: %w", stage, contract.ErrUnknownStage)
}
