package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

const batchPromptTemplate = `You are an analyst for a personal media library. You receive a JSON array
of items; each has "id", "raw_text" (a transcript or OCR result) and
"platform". For every item produce one JSON object with these keys:

- "id": copied from the input, unchanged.
- "Title": a short descriptive title.
- "Summary": 1-2 sentences on what the content is about.
- "Category": exactly one category. Prefer an existing one: {categories}
- "Tags": comma-separated tags. Prefer existing ones: {tags}
- "Types": the content type. Prefer an existing one: {types}
- "Refined Text": the raw text cleaned up for readability, with
  transcription/OCR noise removed. Keep the meaning intact.

If no existing Category, Tag or Type fits, invent one and append the
marker (NEW) to that value, e.g. "Cooking (NEW)" or "recipe (NEW), pasta".

Respond with a JSON array only, no prose, one object per input item.

Items:
{items_json}`

func buildBatchPrompt(vocab domain.Vocabulary, items []domain.BatchItem) (string, error) {
	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal batch items: %w", err)
	}

	prompt := batchPromptTemplate
	prompt = strings.ReplaceAll(prompt, "{categories}", strings.Join(vocab.Category, ", "))
	prompt = strings.ReplaceAll(prompt, "{tags}", strings.Join(vocab.Tags, ", "))
	prompt = strings.ReplaceAll(prompt, "{types}", strings.Join(vocab.Types, ", "))
	prompt = strings.ReplaceAll(prompt, "{items_json}", string(itemsJSON))
	return prompt, nil
}
