// Package mutator holds the graph passes that run after ingestion: structural
// normalization, retention rules and the post-reachability markers, and the
// ordered pipeline that runs them.
package mutator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/panbanda/deadwood/pkg/graph"
)

// Pass is one step of the pipeline.
type Pass interface {
	Name() string
	Run(g *graph.Graph) error
}

// Stage groups passes for logging.
type Stage string

const (
	StageNormalization Stage = "normalization"
	StageRetention     Stage = "retention"
	StageAnalysis      Stage = "analysis"
)

// Step is a pass with its stage.
type Step struct {
	Stage Stage
	Pass  Pass
}

// Pipeline runs passes strictly in order. Order is load-bearing: each pass
// assumes the graph shape left by the ones before it.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// NewPipeline creates a pipeline over the given steps.
func NewPipeline(logger *slog.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{steps: steps, logger: logger}
}

// Steps returns the ordered steps.
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Names returns the pass names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Pass.Name()
	}
	return names
}

// Run executes every pass over g. The first failure stops the pipeline.
// Cancellation is only observed between passes.
func (p *Pipeline) Run(ctx context.Context, g *graph.Graph) error {
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := s.Pass.Run(g); err != nil {
			return fmt.Errorf("%s pass %s: %w", s.Stage, s.Pass.Name(), err)
		}
		p.logger.Debug("pass complete",
			slog.String("stage", string(s.Stage)),
			slog.String("pass", s.Pass.Name()),
			slog.Int("declarations", g.Len()),
			slog.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// Options carries the retention configuration passes consult.
type Options struct {
	RetainPublic                   bool
	RetainObjcAccessible           bool
	RetainObjcAnnotated            bool
	RetainFiles                    []string
	RetainAssignOnlyProperties     bool
	AssignOnlyPropertyTypes        []string
	RetainUnusedProtocolFuncParams bool
	RetainCodableProperties        bool
	ExternalCodableProtocols       []string
	ExternalTestCaseClasses        []string
	RetainUnusedImportedModules    []string
	RetainSwiftUIPreviews          bool
}

// NormalizationSteps returns the structural normalization passes in order.
// Cascading precedes folding because folding discards the extension node that
// carries the explicit accessibility.
func NormalizationSteps(opts Options) []Step {
	passes := []Pass{
		AccessibilityCascader{},
		ExtensionFolder{},
		CodingKeyEnumReferenceBuilder{ExternalCodableProtocols: opts.ExternalCodableProtocols},
		SuperclassConformanceLinker{},
		ProtocolConformanceInverter{},
		ProtocolExtensionLinker{},
		DefaultConstructorReferenceBuilder{},
		EnumCaseReferenceBuilder{},
		AssociatedTypeReferenceBuilder{},
		LetShorthandReferenceBuilder{},
		StringInterpolationReferenceBuilder{},
		ComplexPropertyAccessorReferenceBuilder{},
		AncestralReferenceEliminator{},
		AssignOnlyPropertyReferenceEliminator{
			Disabled:      opts.RetainAssignOnlyProperties,
			ExemptedTypes: opts.AssignOnlyPropertyTypes,
		},
	}
	return stage(StageNormalization, passes)
}

// RetentionSteps returns the retention rule passes.
func RetentionSteps(opts Options) []Step {
	passes := []Pass{
		EntryPointRetainer{},
		TestRetainer{ExternalTestCaseClasses: opts.ExternalTestCaseClasses},
		FrameworkCallbackRetainer{SwiftUIPreviews: opts.RetainSwiftUIPreviews},
		ObjcRetainer{Accessible: opts.RetainObjcAccessible, Annotated: opts.RetainObjcAnnotated},
		CodablePropertyRetainer{All: opts.RetainCodableProperties, ExternalCodableProtocols: opts.ExternalCodableProtocols},
		ResultBuilderRetainer{},
		PropertyWrapperRetainer{},
		DynamicMemberRetainer{},
		ExternalOverrideRetainer{},
		ExternalExtensionRetainer{},
		UnusedParameterRetainer{RetainProtocolParams: opts.RetainUnusedProtocolFuncParams},
		PublicRetainer{Enabled: opts.RetainPublic},
		FileRetainer{Globs: opts.RetainFiles},
		CommentCommandRetainer{},
	}
	return stage(StageRetention, passes)
}

func stage(s Stage, passes []Pass) []Step {
	steps := make([]Step, len(passes))
	for i, p := range passes {
		steps[i] = Step{Stage: s, Pass: p}
	}
	return steps
}
