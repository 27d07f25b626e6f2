package llm

// DefaultEngine is used when a request omits the engine name.
const DefaultEngine = "Mango Ube"

// engineModels maps public engine names to provider model ids.
var engineModels = map[string]string{
	"Mango Ube": "sao10k/l3-lunaris-8b",
}

// ResolveEngine maps a public engine name to its provider model id.
func ResolveEngine(engine string) (model string, ok bool) {
	if engine == "" {
		engine = DefaultEngine
	}
	model, ok = engineModels[engine]
	return model, ok
}
