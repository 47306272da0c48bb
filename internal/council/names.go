package council

import "strings"

// ShortModelName strips the provider prefix from an OpenRouter-style model
// identifier: "openai/gpt-5.1" → "gpt-5.1". Unprefixed names pass through.
func ShortModelName(model string) string {
	if i := strings.Index(model, "/"); i >= 0 && i+1 < len(model) {
		return model[i+1:]
	}
	return model
}

// DeAnonymize replaces anonymized response labels ("Response A") in ranking
// text with the bold short name of the originating model. Display only — the
// stored ranking keeps its anonymized labels.
func DeAnonymize(text string, labelToModel map[string]string) string {
	if len(labelToModel) == 0 {
		return text
	}
	for label, model := range labelToModel {
		text = strings.ReplaceAll(text, label, "**"+ShortModelName(model)+"**")
	}
	return text
}

// LabelModel resolves an anonymized label to its short model name, falling
// back to the label itself when the map has no entry.
func LabelModel(label string, labelToModel map[string]string) string {
	if model, ok := labelToModel[label]; ok {
		return ShortModelName(model)
	}
	return label
}
