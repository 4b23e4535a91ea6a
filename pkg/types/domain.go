package types

// ModelStatus is the lifecycle state of a model as seen by the front end.
type ModelStatus string

const (
	ModelAvailable  ModelStatus = "available"
	ModelDownloaded ModelStatus = "downloaded"
	ModelLoaded     ModelStatus = "loaded"
)

// ModelRecord is the canonical, provider-agnostic view of a model.
type ModelRecord struct {
	// Stable identifier for the model as understood by its provider.
	// example: phi-3.5-mini-instruct-generic-cpu:1
	ID string `json:"id" example:"phi-3.5-mini-instruct-generic-cpu:1"`
	// Human-friendly name.
	// example: Phi-3.5 Mini Instruct (CPU)
	Name string `json:"name" example:"Phi-3.5 Mini Instruct (CPU)"`
	// Short free-text description.
	Description string `json:"description,omitempty"`
	// Size of the model artifact in bytes, when known.
	// example: 2254857830
	SizeBytes int64 `json:"sizeBytes,omitempty" example:"2254857830"`
	// Estimated resident memory in MB, when the size is known.
	// example: 2580
	EstRAMMB int `json:"estRamMb,omitempty" example:"2580"`
	// One of available, downloaded, loaded.
	// example: downloaded
	Status ModelStatus `json:"status" example:"downloaded"`
	// Name of the provider serving the model.
	// example: foundry
	Provider string `json:"provider" example:"foundry"`
	// Optional family (e.g., phi, qwen, llama).
	Family string `json:"family,omitempty"`
	// Optional parameter size string (e.g., 7b).
	ParameterSize string `json:"parameterSize,omitempty"`
}
