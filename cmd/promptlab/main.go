// Command promptlab runs a prompt optimization job: it loads a dataset
// and a prompt template, runs the composite optimizer against them, and
// writes the optimized template and evaluation results to disk.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/manifold-labs/promptlab/internal/config"
	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/eval"
	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/metric"
	"github.com/manifold-labs/promptlab/internal/observability"
	"github.com/manifold-labs/promptlab/internal/optimize"
	"github.com/manifold-labs/promptlab/internal/prompt"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

func main() {
	var (
		configPath    = flag.String("config", "promptlab.yaml", "path to config file")
		promptDir     = flag.String("prompt-dir", "", "directory holding system_prompt.txt/user_prompt.txt to optimize")
		datasetPath   = flag.String("dataset", "", "path to a JSONL or CSV dataset")
		datasetFormat = flag.String("dataset-format", "jsonl", "dataset format: jsonl or csv")
		inputColumns  = flag.String("input-columns", "", "comma-separated input column names")
		outputColumn  = flag.String("output-column", "", "ground-truth output column name")
		mode          = flag.String("mode", "fast", "optimizer preset: fast, thorough, or custom")
		outDir        = flag.String("out", "optimized_prompt", "directory to write the optimized prompt template")
		evalOut       = flag.String("eval-out", "", "optional path to write per-row evaluation results as JSONL")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	observability.InitLogger(cfg.LogFile, cfg.LogLevel)

	if *promptDir == "" {
		log.Fatal("-prompt-dir is required")
	}
	tmpl, err := prompt.Load(*promptDir)
	if err != nil {
		log.Fatalf("load prompt template: %v", err)
	}

	var ds *dataset.Dataset
	var m metric.Metric = metric.ExactMatch
	if *datasetPath != "" {
		if *outputColumn == "" || *inputColumns == "" {
			log.Fatal("-input-columns and -output-column are required when -dataset is set")
		}
		cols := strings.Split(*inputColumns, ",")
		ds, err = loadDataset(*datasetPath, *datasetFormat, cols, *outputColumn)
		if err != nil {
			log.Fatalf("load dataset: %v", err)
		}
	}

	ctx := context.Background()
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond)
	composite := optimize.NewComposite(cfg, limiter, m, "exact_match")

	spinner, _ := pterm.DefaultSpinner.Start("optimizing prompt")
	var custom *config.CompositePreset
	if p, ok := cfg.Presets["custom"]; ok {
		custom = &p
	}
	optimized, err := composite.Optimize(ctx, tmpl, *mode, custom, ds)
	if err != nil {
		spinner.Fail(err.Error())
		os.Exit(1)
	}
	spinner.Success("optimization complete")
	printBestTrialTable(composite.LastTrials)

	if err := optimized.Save(*outDir); err != nil {
		log.Fatalf("save optimized prompt: %v", err)
	}
	pterm.Success.Printf("wrote optimized prompt to %s\n", *outDir)

	if *evalOut != "" && ds != nil {
		taskModel := resolveTaskModel(cfg, *mode)
		adapter, err := llmadapter.BuildAdapter(ctx, taskModel, cfg, limiter)
		if err != nil {
			log.Fatalf("build task adapter: %v", err)
		}
		evaluator := eval.New(ds, optimized, m, "exact_match")

		bar, _ := pterm.DefaultProgressbar.WithTotal(ds.Len()).WithTitle("evaluating optimized prompt").Start()
		var progressMu sync.Mutex
		reported := 0
		evaluator.OnProgress = func(done, total int) {
			progressMu.Lock()
			defer progressMu.Unlock()
			if delta := done - reported; delta > 0 {
				bar.Add(delta)
				reported = done
			}
		}

		results, err := evaluator.Scores(ctx, adapter, taskModel, llmadapter.Config{})
		_, _ = bar.Stop()
		if err != nil {
			log.Fatalf("evaluate optimized prompt: %v", err)
		}
		if err := eval.Save(*evalOut, results); err != nil {
			log.Fatalf("save evaluation results: %v", err)
		}
		pterm.Success.Printf("wrote evaluation results to %s\n", *evalOut)
	}
}

// printBestTrialTable renders the search optimizer's scored trials, best
// score first, via pterm.DefaultTable. A nil/empty trials slice (no
// dataset/metric supplied, so the search phase never ran) prints nothing.
func printBestTrialTable(trials []optimize.TrialSummary) {
	if len(trials) == 0 {
		return
	}
	sorted := make([]optimize.TrialSummary, len(trials))
	copy(sorted, trials)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	rows := [][]string{{"Trial", "Score", "Demos", "Winner", "Instruction"}}
	for _, t := range sorted {
		winner := ""
		if t.Winner {
			winner = "*"
		}
		rows = append(rows, []string{
			t.ID,
			strconv.FormatFloat(t.Score, 'f', 4, 64),
			strconv.Itoa(t.NumDemos),
			winner,
			truncateInstruction(t.Instruction, 60),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(rows)).Render()
}

func truncateInstruction(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func resolveTaskModel(cfg config.Config, mode string) string {
	if preset, ok := cfg.Presets[mode]; ok && preset.TaskModel != "" {
		return preset.TaskModel
	}
	return "gpt-4o-mini"
}

func loadDataset(path, format string, inputColumns []string, outputColumn string) (*dataset.Dataset, error) {
	if strings.EqualFold(format, "csv") {
		return dataset.LoadCSV(path, inputColumns, outputColumn)
	}
	return dataset.LoadJSONL(path, inputColumns, outputColumn)
}
