// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the pipeline assembler: the ordered stage list and
// the single compilation pass that threads the resolution context from stage
// to stage.
package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/leandroluk/talos/core"
)

// Pipeline is an ordered list of stages compiled in one pass. Building a
// pipeline performs no compilation; Render walks the stages in order,
// compiling each against the context produced by its predecessors.
//
// Example:
//
//	pipeline := aggregation.NewPipeline(
//	    aggregation.Project("customerId").
//	        AndExpression("price * quantity").As("total"),
//	    aggregation.Match(query.Where("total").Gt(100)),
//	)
//	docs, err := pipeline.Render(aggregation.NewRootContext(schema.Core(), aggregation.StrictLookup))
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline from the given stages in order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Append adds stages to the end of the pipeline and returns it for chaining.
func (p *Pipeline) Append(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// Stages returns the stage list in pipeline order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Render compiles every stage into its native document, threading the
// context: each stage resolves against what its predecessors exposed, and a
// stage that reshapes the document replaces (or extends) the context for its
// successors. Rendering is read-only on the pipeline, so a built pipeline
// may be rendered repeatedly, against different contexts, from concurrent
// goroutines.
func (p *Pipeline) Render(ctx Context) ([]bson.D, error) {
	documents := make([]bson.D, 0, len(p.stages))
	for i, stage := range p.stages {
		document, err := stage.Render(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "render pipeline stage %d", i)
		}
		documents = append(documents, document)

		if exposer, ok := stage.(fieldsExposer); ok {
			if exposer.inheritsFields() {
				ctx = ctx.InheritAndExpose(exposer.exposedFields())
			} else {
				ctx = ctx.Expose(exposer.exposedFields())
			}
		}
		if _, ok := stage.(*replaceRootStage); ok {
			// The new root's shape is unknown; stop failing lookups hard.
			ctx = ctx.ContinueOnMissingFieldReference()
		}
	}
	return documents, nil
}

// RenderFor compiles the pipeline against a fresh strict root context for
// the given schema. It is the common entry point used by the collection
// facade.
func (p *Pipeline) RenderFor(schema *core.SchemaCore) ([]bson.D, error) {
	return p.Render(NewRootContext(schema, StrictLookup))
}
