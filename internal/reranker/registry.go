package reranker

// RegisteredModel describes one well-known cross-encoder model that an
// HTTP reranker sidecar might be serving. cass itself never loads model
// weights; this registry exists so CLI flags and config files can name a
// model and get back its metadata for display and selection.
type RegisteredModel struct {
	// Name is the short CLI/config identifier, e.g. "ms-marco".
	Name string
	// ID is the fully qualified model identifier, e.g. "ms-marco-minilm-l6-v2".
	ID string
	// Description is a human-readable summary.
	Description string
	// HuggingFaceID is the model's HuggingFace repository identifier.
	HuggingFaceID string
	// IsBaseline marks the default/reference model.
	IsBaseline bool
}

// DefaultRerankerModel is used when a backend is configured but no specific
// model name is given.
const DefaultRerankerModel = "ms-marco"

// registeredModels lists the cross-encoder models an HTTP reranker sidecar
// is expected to be able to serve.
var registeredModels = []RegisteredModel{
	{
		Name:          "ms-marco",
		ID:            "ms-marco-minilm-l6-v2",
		Description:   "Baseline cross-encoder reranker",
		HuggingFaceID: "cross-encoder/ms-marco-MiniLM-L-6-v2",
		IsBaseline:    true,
	},
	{
		Name:          "bge-reranker-v2",
		ID:            "bge-reranker-v2-m3",
		Description:   "BGE v2 cross-encoder reranker",
		HuggingFaceID: "BAAI/bge-reranker-v2-m3",
	},
	{
		Name:          "jina-reranker-turbo",
		ID:            "jina-reranker-v1-turbo-en",
		Description:   "Fast English-only cross-encoder reranker",
		HuggingFaceID: "jinaai/jina-reranker-v1-turbo-en",
	},
	{
		Name:          "jina-reranker-v2",
		ID:            "jina-reranker-v2-base-multilingual",
		Description:   "Multilingual cross-encoder reranker",
		HuggingFaceID: "jinaai/jina-reranker-v2-base-multilingual",
	},
}

// ListRegisteredModels returns every model this build knows how to name.
func ListRegisteredModels() []RegisteredModel {
	out := make([]RegisteredModel, len(registeredModels))
	copy(out, registeredModels)
	return out
}

// LookupRegisteredModel finds a model by its short name, reporting false if
// unknown.
func LookupRegisteredModel(name string) (RegisteredModel, bool) {
	for _, m := range registeredModels {
		if m.Name == name {
			return m, true
		}
	}
	return RegisteredModel{}, false
}
