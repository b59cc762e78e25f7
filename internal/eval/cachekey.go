package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/prompt"
)

// cacheKey identifies one (model, dataset, prompt, metric) combination for
// the Evaluator's inference memoization (spec §4.5). It is derived purely
// from content, not pointer identity, so two structurally identical
// datasets/prompts hash to the same entry and share a cache hit.
func cacheKey(modelID string, ds *dataset.Dataset, tmpl *prompt.Template, metricName string) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(datasetFingerprint(ds)))
	h.Write([]byte{0})
	h.Write([]byte(promptFingerprint(tmpl)))
	h.Write([]byte{0})
	h.Write([]byte(metricName))
	return hex.EncodeToString(h.Sum(nil))
}

func datasetFingerprint(ds *dataset.Dataset) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(ds.InputColumns, ","))
	sb.WriteString("|")
	sb.WriteString(strings.Join(ds.OutputColumns, ","))
	for _, r := range ds.Records {
		sb.WriteString("|")
		writeSortedMap(&sb, r.Inputs)
		sb.WriteString(">")
		writeSortedMap(&sb, r.Outputs)
	}
	return sb.String()
}

func promptFingerprint(tmpl *prompt.Template) string {
	var sb strings.Builder
	sb.WriteString(tmpl.SystemTemplate)
	sb.WriteString("|")
	sb.WriteString(tmpl.UserTemplate)
	sb.WriteString("|")
	sb.WriteString(tmpl.FewShot.Format.String())
	for _, vars := range []map[string]struct{}{tmpl.SystemVars, tmpl.UserVars} {
		names := make([]string, 0, len(vars))
		for n := range vars {
			names = append(names, n)
		}
		sort.Strings(names)
		sb.WriteString("|")
		sb.WriteString(strings.Join(names, ","))
	}
	for _, ex := range tmpl.FewShot.Examples {
		sb.WriteString("|")
		sb.WriteString(ex.Input)
		sb.WriteString(">")
		sb.WriteString(ex.Output)
	}
	return sb.String()
}

func writeSortedMap(sb *strings.Builder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(m[k])
		sb.WriteString(";")
	}
}
