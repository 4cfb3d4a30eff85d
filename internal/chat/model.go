package chat

// Gemini Model IDs
//
// | Model Name               | API Model ID           | Use Case                      |
// |--------------------------|------------------------|-------------------------------|
// | Gemini 3 Flash (Preview) | gemini-3-flash-preview | Best for speed + intelligence |
// | Gemini 2.5 Flash         | gemini-2.5-flash       | Stable, balanced performance  |
// | Gemini 2.5 Flash-Lite    | gemini-2.5-flash-lite  | High-throughput, lowest cost  |
const (
	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"

	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini25FlashLite is for high-throughput, lowest cost.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// DefaultModelName is the default Gemini model to use.
// Can be overridden via CALL_SENTIMENT_GEMINI_MODEL.
const DefaultModelName = ModelGemini3FlashPreview

// ResolveModel returns name, or DefaultModelName when name is empty.
func ResolveModel(name string) string {
	if name != "" {
		return name
	}
	return DefaultModelName
}
