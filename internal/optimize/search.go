package optimize

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/eval"
	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/metric"
	"github.com/manifold-labs/promptlab/internal/observability"
	"github.com/manifold-labs/promptlab/internal/prompt"
	"github.com/manifold-labs/promptlab/internal/runner"
)

// tips are the rhetorical angles sampled per proposal round to diversify
// instruction candidates (spec §4.7).
var tips = []string{
	"creative", "simple", "descriptive", "high-stakes", "persona",
	"format-control", "structured", "examples", "rules-based", "multi-turn",
}

const proposerInstructionTemplate = `You are improving the system instructions of a prompt template used for a language model task.

CURRENT SYSTEM INSTRUCTIONS:
%s

Write one alternative system instruction that keeps the same intent but takes a %s approach. Respond with the instruction text only, no preamble, no quotes.`

// SearchOptimizer explores instruction rewordings and few-shot demonstration
// subsets via trial search against a held-out split (spec §4.7).
type SearchOptimizer struct {
	ProposerAdapter *llmadapter.Adapter
	TaskAdapter     *llmadapter.Adapter
	ProposerModel   string
	TaskModel       string
	Metric          metric.Metric
	MetricName      string

	NumCandidates        int
	NumTrials            int
	MaxBootstrappedDemos int
	MaxLabeledDemos      int
	MinibatchSize        int // 0 = evaluate the full held-out split

	// Trials records every scored trial from the most recent Optimize call,
	// in trial order, for the CLI's best-trial table.
	Trials []TrialSummary

	rng *rand.Rand
}

// NewSearch builds a SearchOptimizer whose source of randomness is seeded
// with 1; set rng directly in tests to pick another seed. proposerAdapter
// and taskAdapter may be the same instance when both models share a
// vendor, but are kept distinct since BuildAdapter selects a vendor
// client by model id.
func NewSearch(proposerAdapter, taskAdapter *llmadapter.Adapter, proposerModel, taskModel string, m metric.Metric, metricName string) *SearchOptimizer {
	return &SearchOptimizer{
		ProposerAdapter: proposerAdapter,
		TaskAdapter:     taskAdapter,
		ProposerModel:   proposerModel,
		TaskModel:       taskModel,
		Metric:          m,
		MetricName:      metricName,
		rng:             rand.New(rand.NewSource(1)),
	}
}

type trial struct {
	template *prompt.Template
	score    float64
}

// TrialSummary records one scored trial for the CLI's best-trial table
// (SPEC_FULL.md §2), rendered after a run completes.
type TrialSummary struct {
	ID          string
	Score       float64
	NumDemos    int
	Instruction string
	Winner      bool
}

// Optimize runs the bootstrap/propose/search phases over train and scores
// candidates against heldout, returning the winning Template (spec §4.7
// step 4): the winning instruction as system text, the winning demos in
// the few-shot slot, and tmpl's original placeholder declarations
// unchanged.
func (o *SearchOptimizer) Optimize(ctx context.Context, tmpl *prompt.Template, train, heldout *dataset.Dataset) (*prompt.Template, error) {
	log := observability.Log()

	demoPool, err := o.bootstrap(ctx, tmpl, train)
	if err != nil {
		return nil, err
	}

	candidates, err := o.propose(ctx, tmpl)
	if err != nil {
		return nil, err
	}
	candidates = append([]string{tmpl.SystemTemplate}, candidates...)

	best := trial{template: tmpl, score: -1}
	numTrials := o.NumTrials
	if numTrials <= 0 {
		numTrials = 1
	}

	o.Trials = make([]TrialSummary, 0, numTrials)
	bestTrialID := ""

	for i := 0; i < numTrials; i++ {
		trialID := uuid.NewString()
		instruction := candidates[o.rng.Intn(len(candidates))]
		demos := o.sampleDemoSubset(demoPool)

		candidate, err := prompt.New(instruction, namesOf(tmpl.SystemVars), tmpl.UserTemplate, namesOf(tmpl.UserVars),
			prompt.FewShot{Examples: demos, Format: demoFormat(tmpl)})
		if err != nil {
			log.Warn().Str("trial", trialID).Err(err).Msg("search_trial_invalid_candidate")
			continue
		}

		evalSplit := heldout
		if o.MinibatchSize > 0 && o.MinibatchSize < heldout.Len() {
			evalSplit, err = o.minibatch(heldout)
			if err != nil {
				return nil, err
			}
		}

		evaluator := eval.New(evalSplit, candidate, o.Metric, o.MetricName)
		score, err := evaluator.AggregateScore(ctx, o.TaskAdapter, o.TaskModel, llmadapter.Config{})
		if err != nil {
			log.Warn().Str("trial", trialID).Err(err).Msg("search_trial_evaluation_failed")
			continue
		}

		log.Info().Str("trial", trialID).Float64("score", score).Msg("search_trial_scored")
		o.Trials = append(o.Trials, TrialSummary{ID: trialID, Score: score, NumDemos: len(demos), Instruction: instruction})
		if score > best.score {
			best = trial{template: candidate, score: score}
			bestTrialID = trialID
		}
	}

	for i := range o.Trials {
		o.Trials[i].Winner = o.Trials[i].ID == bestTrialID
	}

	if o.MinibatchSize > 0 && o.MinibatchSize < heldout.Len() && best.template != tmpl {
		evaluator := eval.New(heldout, best.template, o.Metric, o.MetricName)
		score, err := evaluator.AggregateScore(ctx, o.TaskAdapter, o.TaskModel, llmadapter.Config{})
		if err != nil {
			return nil, fmt.Errorf("re-score winning trial against full split: %w", err)
		}
		log.Info().Float64("score", score).Msg("search_winner_rescored_full_split")
	}

	return best.template, nil
}

// bootstrap produces up to MaxBootstrappedDemos demonstrations from
// records whose current-prompt output passes the metric, plus up to
// MaxLabeledDemos raw (input, output) pairs sampled from train (spec
// §4.7 step 1).
func (o *SearchOptimizer) bootstrap(ctx context.Context, tmpl *prompt.Template, train *dataset.Dataset) ([]prompt.Example, error) {
	var demos []prompt.Example

	if o.MaxBootstrappedDemos > 0 && train.Len() > 0 {
		r := runner.New(o.TaskAdapter, o.TaskModel, llmadapter.Config{})
		results := r.Run(ctx, tmpl, train)
		for _, res := range results {
			_, truth := res.Record.Output()
			if o.Metric.Apply(res.InferenceOutput, truth) <= 0 {
				continue
			}
			demos = append(demos, prompt.Example{Input: recordInputText(res.Record), Output: res.InferenceOutput})
			if len(demos) >= o.MaxBootstrappedDemos {
				break
			}
		}
	}

	if o.MaxLabeledDemos > 0 && train.Len() > 0 {
		perm := o.rng.Perm(train.Len())
		added := 0
		for _, idx := range perm {
			if added >= o.MaxLabeledDemos {
				break
			}
			record := train.Records[idx]
			_, truth := record.Output()
			demos = append(demos, prompt.Example{Input: recordInputText(record), Output: truth})
			added++
		}
	}

	return demos, nil
}

// propose asks the proposer model for NumCandidates alternative system
// instructions, each seeded with a randomly sampled rhetorical tip (spec
// §4.7 step 2).
func (o *SearchOptimizer) propose(ctx context.Context, tmpl *prompt.Template) ([]string, error) {
	numCandidates := o.NumCandidates
	if numCandidates <= 0 {
		return nil, nil
	}
	candidates := make([]string, 0, numCandidates)
	for i := 0; i < numCandidates; i++ {
		tip := tips[o.rng.Intn(len(tips))]
		instruction := fmt.Sprintf(proposerInstructionTemplate, tmpl.SystemTemplate, tip)
		out, err := o.ProposerAdapter.CallModel(ctx, o.ProposerModel, "", []llmadapter.Message{{Role: llmadapter.RoleUser, Text: instruction}}, llmadapter.Config{})
		if err != nil {
			return nil, fmt.Errorf("propose instruction candidate: %w", err)
		}
		candidates = append(candidates, strings.TrimSpace(out))
	}
	return candidates, nil
}

// sampleDemoSubset returns a random, possibly empty, subset of the demo
// pool for one trial.
func (o *SearchOptimizer) sampleDemoSubset(pool []prompt.Example) []prompt.Example {
	if len(pool) == 0 {
		return nil
	}
	n := o.rng.Intn(len(pool) + 1)
	if n == 0 {
		return nil
	}
	perm := o.rng.Perm(len(pool))[:n]
	sort.Ints(perm)
	out := make([]prompt.Example, n)
	for i, idx := range perm {
		out[i] = pool[idx]
	}
	return out
}

// minibatch draws a random, size-MinibatchSize subset of ds for one
// trial's evaluation, the supplemented optional evaluation mode of
// SPEC_FULL.md.
func (o *SearchOptimizer) minibatch(ds *dataset.Dataset) (*dataset.Dataset, error) {
	perm := o.rng.Perm(ds.Len())[:o.MinibatchSize]
	records := make([]dataset.Record, o.MinibatchSize)
	for i, idx := range perm {
		records[i] = ds.Records[idx]
	}
	return dataset.New(records, ds.InputColumns, ds.OutputColumns)
}

func demoFormat(tmpl *prompt.Template) prompt.FewShotFormat {
	if tmpl.FewShot.Format != prompt.FewShotNone {
		return tmpl.FewShot.Format
	}
	return prompt.FewShotAppendToUser
}

func recordInputText(r dataset.Record) string {
	keys := make([]string, 0, len(r.Inputs))
	for k := range r.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.Inputs[k])
	}
	return b.String()
}
