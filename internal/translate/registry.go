package translate

import (
	"fmt"
	"sort"

	"github.com/video-translate/backend/internal/config"
	"github.com/video-translate/backend/internal/logger"
)

// DefaultEngine is always registered; OPENAI_API_KEY is mandatory config.
const DefaultEngine = "openai"

// Registry holds the translation engines available to the pipeline, keyed by
// name. Engines are registered at startup based on configured credentials.
type Registry struct {
	engines map[string]Translator
}

func NewRegistry(cfg *config.Config) *Registry {
	log := logger.WithComponent("translate")
	r := &Registry{engines: make(map[string]Translator)}

	r.engines["openai"] = NewOpenAITranslator(cfg.OpenAIAPIKey, cfg.ChatModel)
	log.WithField("model", cfg.ChatModel).Info("registered OpenAI translation engine")

	if cfg.GeminiAPIKey != "" {
		r.engines["gemini"] = NewGeminiTranslator(cfg.GeminiAPIKey)
		log.Info("registered Gemini translation engine")
	}

	if cfg.DeepLAPIKey != "" {
		r.engines["deepl"] = NewDeepLTranslator(cfg.DeepLAPIKey)
		log.Info("registered DeepL translation engine")
	}

	return r
}

// Register adds or replaces an engine under its own name.
func (r *Registry) Register(t Translator) {
	r.engines[t.Name()] = t
}

// Get resolves an engine by name; an empty name selects the default engine.
func (r *Registry) Get(name string) (Translator, error) {
	if name == "" {
		name = DefaultEngine
	}
	engine, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown translation engine: %s (available: %v)", name, r.Names())
	}
	return engine, nil
}

// Names returns the registered engine names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
