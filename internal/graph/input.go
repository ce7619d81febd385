package graph

import (
	"fmt"
	"regexp"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/pkg/types"
)

// templateRefRE matches {stepId} placeholders in an InputTemplate string.
var templateRefRE = regexp.MustCompile(`\{(\w+)\}`)

// resolveInput turns a step's InputSpec into the concrete value passed as
// ExecutionContext.Input, given the outputs of already-completed upstream
// steps.
func resolveInput(spec types.InputSpec, upstream map[string]any) (any, error) {
	switch spec.Kind {
	case types.InputTemplate:
		return renderTemplate(spec.Template, upstream), nil
	case types.InputFunc:
		if spec.Func == nil {
			return nil, engineerr.InvalidInput("input spec: function kind with no Func set")
		}
		return spec.Func(upstream), nil
	default:
		return spec.Literal, nil
	}
}

// renderTemplate replaces every {stepId} reference with the stringified
// output of that step; references to steps not present in upstream (not
// yet run, or a typo) are left verbatim so the mistake is visible in the
// resolved input rather than silently dropped.
func renderTemplate(tmpl string, upstream map[string]any) string {
	return templateRefRE.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := upstream[key]; ok {
			return fmt.Sprintf("%v", v)
		}
		return match
	})
}
