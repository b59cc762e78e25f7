// Package optimize implements the two coupled prompt optimizers of spec
// §4.6-§4.8: a meta-prompter that rewrites instructions via a single LLM
// call, a search optimizer that explores instruction/demo combinations,
// and a composite optimizer that sequences the two.
package optimize

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/observability"
	"github.com/manifold-labs/promptlab/internal/prompt"
	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

// tagPattern extracts the two tagged sections of a meta-prompter response
// with non-greedy, DOTALL-equivalent matching — the same construction the
// teacher uses for its own LLM-output extraction (search/replace diff
// blocks), adapted here to a pair of sibling tags instead of one repeated
// pair.
var tagPattern = regexp.MustCompile(`(?s)<system_prompt>(.*?)</system_prompt>.*?<user_prompt>(.*?)</user_prompt>`)

const metaInstructionTemplate = `You are rewriting a prompt template for a language model task.

Rewrite the CURRENT USER PROMPT below into an improved system prompt and user prompt pair. Preserve every placeholder token exactly as written (e.g. {{name}}); never rename, translate, or remove them.

Placeholders that MUST appear, verbatim, somewhere in the user prompt you write:
%s

The system prompt you write MUST NOT contain any of those placeholder tokens.

CURRENT SYSTEM PROMPT:
%s

CURRENT USER PROMPT:
%s

Respond with exactly this shape and nothing else:
<system_prompt>...</system_prompt>
<user_prompt>...</user_prompt>`

// MetaPrompterOptimizer rewrites a Template's instructions via a single
// prompter-model call, retrying on validation failure (spec §4.6).
type MetaPrompterOptimizer struct {
	Adapter       *llmadapter.Adapter
	PrompterModel string
	MaxRetries    int
}

// NewMetaPrompter builds a MetaPrompterOptimizer with the spec default of
// 5 retries.
func NewMetaPrompter(adapter *llmadapter.Adapter, prompterModel string) *MetaPrompterOptimizer {
	return &MetaPrompterOptimizer{Adapter: adapter, PrompterModel: prompterModel, MaxRetries: 5}
}

// Optimize rewrites tmpl's system/user instructions, preserving its
// placeholder declarations and few-shot slot unchanged.
func (o *MetaPrompterOptimizer) Optimize(ctx context.Context, tmpl *prompt.Template) (*prompt.Template, error) {
	log := observability.Log()
	placeholders := unionSortedNames(tmpl.SystemVars, tmpl.UserVars)
	instruction := fmt.Sprintf(metaInstructionTemplate, strings.Join(placeholders, ", "), tmpl.SystemTemplate, tmpl.UserTemplate)

	maxRetries := o.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	var lastSystem, lastUser string
	haveParsed := false

	for attempt := 0; attempt < maxRetries; attempt++ {
		raw, err := o.Adapter.CallModel(ctx, o.PrompterModel, "", []llmadapter.Message{{Role: llmadapter.RoleUser, Text: instruction}}, llmadapter.Config{})
		if err != nil {
			return nil, fmt.Errorf("%w: meta-prompter call failed: %v", promptlaberrors.ErrOptimization, err)
		}

		system, user, ok := parseTags(raw)
		if !ok {
			log.Warn().Int("attempt", attempt).Msg("meta_prompter_unparseable_output")
			continue
		}
		haveParsed = true
		lastSystem, lastUser = system, user

		if validateMetaPrompterOutput(system, user, placeholders) {
			return prompt.New(system, namesOf(tmpl.SystemVars), user, namesOf(tmpl.UserVars), tmpl.FewShot)
		}
		log.Warn().Int("attempt", attempt).Msg("meta_prompter_validation_failed")
	}

	if !haveParsed {
		return nil, fmt.Errorf("%w: meta-prompter never returned parseable output", promptlaberrors.ErrOptimization)
	}

	lastUser = appendMissingPlaceholders(lastUser, placeholders)
	return prompt.New(lastSystem, namesOf(tmpl.SystemVars), lastUser, namesOf(tmpl.UserVars), tmpl.FewShot)
}

func parseTags(raw string) (system, user string, ok bool) {
	m := tagPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

// validateMetaPrompterOutput checks spec §4.6 step 4: every placeholder
// declared on the original template must appear in the rewritten user
// prompt, and none may appear in the rewritten system prompt.
func validateMetaPrompterOutput(system, user string, placeholders []string) bool {
	for _, name := range placeholders {
		token := "{{" + name + "}}"
		if !strings.Contains(user, token) {
			return false
		}
		if strings.Contains(system, token) {
			return false
		}
	}
	return true
}

// appendMissingPlaceholders appends any placeholder absent from user in
// the `[[ ## name ## ]]\n{{name}}\n` convention of spec §4.1/§4.6, used
// when retries are exhausted without a fully valid parse.
func appendMissingPlaceholders(user string, placeholders []string) string {
	var missing []string
	for _, name := range placeholders {
		if !strings.Contains(user, "{{"+name+"}}") {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return user
	}
	var b strings.Builder
	b.WriteString(user)
	for _, name := range missing {
		b.WriteString(fmt.Sprintf("\n[[ ## %s ## ]]\n{{%s}}\n", name, name))
	}
	return b.String()
}

func namesOf(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func unionSortedNames(sets ...map[string]struct{}) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for n := range set {
			seen[n] = struct{}{}
		}
	}
	return namesOf(seen)
}
