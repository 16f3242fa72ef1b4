package convert

// Options is the flat configuration bag handed to converter factories. Each
// backend reads the fields it understands and ignores the rest, so the same
// bag can be reused across construction and conversion (the registry's
// ConvertAndSave relies on this).
type Options struct {
	// Shared across LLM-backed converters.
	APIKey              string
	Model               string
	MaxTokens           int
	MaxCompletionTokens int
	Temperature         *float64
	BaseURL             string

	// OCR converter.
	Language string

	// Structure converter. Nil means enabled.
	DetectTables   *bool
	DetectHeadings *bool
	DetectLists    *bool

	// Azure Document Intelligence converter.
	Endpoint   string
	APIVersion string
	ModelID    string

	// Per-call parameters, carried here so the registry can forward one bag.
	Prompt         string
	SaveJSON       bool
	JSONOutputPath string

	// Extra holds backend-specific options with no common field.
	Extra map[string]any
}

// ConvertOptions derives the per-call options from the bag.
func (o Options) ConvertOptions() *ConvertOptions {
	return &ConvertOptions{
		Prompt:              o.Prompt,
		MaxTokens:           o.MaxTokens,
		MaxCompletionTokens: o.MaxCompletionTokens,
		Temperature:         o.Temperature,
		SaveJSON:            o.SaveJSON,
		JSONOutputPath:      o.JSONOutputPath,
	}
}

func intOr(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func strOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}
