package conceptgen

import (
	"fmt"
	"os"

	pongo "github.com/flosch/pongo2/v6"
)

// defaultPromptTemplate is the instruction text sent to the VLM ahead
// of the image, ending in the literal sequence WAIT_CODE recognizes
// ("<code>{\"") so free-text preamble from the model funnels straight
// into the constrained region (SPEC_FULL.md §4.8).
const defaultPromptTemplate = `Look at the image and describe the object as a single parametric
concept. Choose the category from: {{ categories|join:", " }}.
{% if hint %}Hint: {{ hint }}
{% endif %}Respond with exactly one JSON object wrapped in a <code> block,
encoding category, pose, and a conceptualization made of one or more
named templates with their parameters.

<code>{"`

// RenderPrompt assembles the prompt text for one generation stream.
// An AssetStore may supply a repo-specific prompt_template.jinja
// override; absent that, defaultPromptTemplate is used, mirroring the
// teacher's chat-template fallback behavior.
func RenderPrompt(assets *AssetStore, categories []string, hint string) (string, error) {
	raw := defaultPromptTemplate

	if assets != nil {
		if paths, err := assets.EnsureOptionalFiles([]string{"prompt_template.jinja"}); err == nil {
			if path, ok := paths["prompt_template.jinja"]; ok {
				if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
					raw = string(b)
				}
			}
		}
	}

	tpl, err := pongo.FromString(raw)
	if err != nil {
		return "", fmt.Errorf("RenderPrompt: parse template: %w", err)
	}

	out, err := tpl.Execute(pongo.Context{
		"categories": categories,
		"hint":       hint,
	})
	if err != nil {
		return "", fmt.Errorf("RenderPrompt: execute template: %w", err)
	}
	return out, nil
}
