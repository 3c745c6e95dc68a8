// fuseplan inspects the fusion plan for a pipeline described in a YAML file:
//
//	pipeline:
//	  - op: map
//	  - op: filter
//	  - op: take
//	    n: 5
//
// It builds the chain from the standard operators, runs the greedy optimizer
// and reports the resulting segments, the overall usage bound, the fusion
// counters and any skipped boundaries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/streamfuse/kfuse"
	"github.com/streamfuse/kfuse/kops"
	"github.com/streamfuse/kfuse/pkg/log"
)

var logger = log.New()

type pipelineFile struct {
	Pipeline []stageSpec `yaml:"pipeline"`
}

type stageSpec struct {
	Op string `yaml:"op"`
	N  uint64 `yaml:"n"`
}

func main() {
	var debug bool

	root := &cobra.Command{
		Use:   "fuseplan FILE",
		Short: "Show the fusion plan for a pipeline description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], debug)
		},
	}
	root.Flags().BoolVar(&debug, "debug", false, "log every fusion attempt")

	root.AddCommand(&cobra.Command{
		Use:   "operators",
		Short: "List the registered operators by category",
		Run: func(cmd *cobra.Command, args []string) {
			reg := kfuse.DefaultRegistry()
			for _, cat := range []kfuse.Category{kfuse.CategoryStateless, kfuse.CategoryStateful, kfuse.CategoryEffectful} {
				for _, name := range reg.ByCategory(cat) {
					md, _ := reg.Get(name)
					fmt.Printf("%-10s %-10s %s\n", name, cat, md.Shape)
				}
			}
		},
	})

	if err := root.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("fuseplan failed")
	}
}

func run(path string, debug bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file pipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Pipeline) == 0 {
		return fmt.Errorf("%s: empty pipeline", path)
	}

	chain := make(kfuse.Chain, 0, len(file.Pipeline))
	for i, spec := range file.Pipeline {
		stage, err := stageFor(spec)
		if err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
		chain = append(chain, stage)
	}
	if err := chain.Validate(); err != nil {
		return err
	}

	o := kfuse.New(nil, kfuse.WithFusionDebug(debug))
	plan := o.OptimizeChain(chain)

	for i, stage := range plan.Chain {
		logger.Info().
			Int("segment", i).
			Str("operator", stage.Operator).
			Str("category", stage.Category.String()).
			Str("shape", stage.Shape.String()).
			Msg("plan segment")
	}
	for _, d := range plan.Diagnostics {
		logger.Warn().Msg(d)
	}
	logger.Info().
		Int("stagesIn", len(chain)).
		Int("stagesOut", len(plan.Chain)).
		Str("bound", plan.Bound.String()).
		Int("totalAttempts", plan.Stats.TotalAttempts).
		Int("successfulFusions", plan.Stats.SuccessfulFusions).
		Int("skippedFusions", plan.Stats.SkippedFusions).
		Float64("averageBoundReduction", plan.Stats.AverageBoundReduction).
		Msg("fusion plan")

	return nil
}

// stageFor builds a plan-only stage: the run bodies are identities, since
// fuseplan never executes the pipeline.
func stageFor(spec stageSpec) (*kfuse.Stage, error) {
	switch spec.Op {
	case "map":
		return kops.Map(func(v any) any { return v }), nil
	case "filter":
		return kops.Filter(func(v any) bool { return true }), nil
	case "scan":
		return kops.Scan(any(nil), func(acc, v any) (any, any) { return acc, v }), nil
	case "flatMap":
		return kops.FlatMap(func(v any) []any { return []any{v} }), nil
	case "take":
		n := spec.N
		if n == 0 {
			return nil, fmt.Errorf("take requires n > 0")
		}
		return kops.Take[any](n), nil
	case "forEach":
		return kops.ForEach(func(v any) {}), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", spec.Op)
	}
}
