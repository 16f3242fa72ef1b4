package convert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a converter from a flat option bag. Factories run on every
// Get call so converters stay cheap to construct.
type Factory func(opts Options) (Converter, error)

// Registry maps converter names to factories. Names are case-insensitive and
// registering an existing name overwrites it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the built-in converters.
func NewRegistry() *Registry {
	return &Registry{factories: builtins()}
}

func builtins() map[string]Factory {
	return map[string]Factory{
		"ocr": func(opts Options) (Converter, error) {
			return NewOCRConverter(opts)
		},
		"vision": func(opts Options) (Converter, error) {
			return NewVisionConverter(opts)
		},
		"structure": func(opts Options) (Converter, error) {
			return NewStructureConverter(opts)
		},
		"llm": func(opts Options) (Converter, error) {
			return NewLLMConverter(opts)
		},
		"anthropic": func(opts Options) (Converter, error) {
			return NewAnthropicConverter(opts)
		},
		"gemini": func(opts Options) (Converter, error) {
			return NewGeminiConverter(opts)
		},
		"azure": func(opts Options) (Converter, error) {
			return NewAzureConverter(opts)
		},
	}
}

// Register adds or replaces a factory under the given name.
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return ErrInvalidConverter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
	return nil
}

// Get builds a converter by name.
func (r *Registry) Get(name string, opts Options) (Converter, error) {
	key := strings.ToLower(name)
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownConverter, name, strings.Join(r.Names(), ", "))
	}

	// OpenAI reasoning models reject max_tokens; carry the budget over to
	// the completion-token field so callers need not know the distinction.
	// Other backends keep their options untouched.
	if key == "llm" && usesCompletionTokens(opts.Model) && opts.MaxTokens > 0 && opts.MaxCompletionTokens == 0 {
		opts.MaxCompletionTokens = opts.MaxTokens
		opts.MaxTokens = 0
	}

	return factory(opts)
}

// Available returns a shallow copy of the name to factory mapping. Mutating
// the returned map does not affect the registry.
func (r *Registry) Available() map[string]Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factories := make(map[string]Factory, len(r.factories))
	for name, factory := range r.factories {
		factories[name] = factory
	}
	return factories
}

// Names returns the sorted list of registered converter names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConvertAndSave builds the named converter, runs it against the image and
// writes the Markdown to outputPath (or next to the image when empty).
// The returned string is the path the Markdown was written to.
func (r *Registry) ConvertAndSave(ctx context.Context, name, imagePath, outputPath string, opts Options) (string, error) {
	conv, err := r.Get(name, opts)
	if err != nil {
		return "", err
	}
	return SaveMarkdown(ctx, conv, imagePath, outputPath, opts.ConvertOptions())
}

// DefaultRegistry is the registry used by the package-level helpers.
var DefaultRegistry = NewRegistry()

// Get builds a converter from the default registry.
func Get(name string, opts Options) (Converter, error) {
	return DefaultRegistry.Get(name, opts)
}

// Register adds a factory to the default registry.
func Register(name string, factory Factory) error {
	return DefaultRegistry.Register(name, factory)
}

// Available returns a copy of the default registry's name to factory mapping.
func Available() map[string]Factory {
	return DefaultRegistry.Available()
}

// Names lists the converter names registered in the default registry.
func Names() []string {
	return DefaultRegistry.Names()
}

// ConvertAndSave runs a named converter from the default registry and writes
// its output to disk.
func ConvertAndSave(ctx context.Context, name, imagePath, outputPath string, opts Options) (string, error) {
	return DefaultRegistry.ConvertAndSave(ctx, name, imagePath, outputPath, opts)
}
