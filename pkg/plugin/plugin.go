package plugin

import (
	"context"

	"VisionFlow/internal/data"

	"github.com/google/uuid"
)

// Plugin defines the interface that all analysis plugins must implement.
// Plugins consume and produce data entities by reference through the data
// manager; they never exchange raw payloads with the orchestrator.
type Plugin interface {
	// Name returns the unique plugin identifier
	Name() string

	// Version disambiguates cached results across plugin revisions
	Version() string

	// Parameters declares the plugin's parameter schema
	Parameters() []ParamSpec

	// Requires maps input slot names to the entity kinds the plugin consumes
	Requires() map[string]data.Kind

	// Provides maps output slot names to the entity kinds the plugin produces
	Provides() map[string]data.Kind

	// Execute runs the analysis and returns produced entity ids by slot
	Execute(ctx context.Context, input Input) (Output, error)
}

// Input carries everything a plugin needs for one invocation.
type Input struct {
	RunID      uuid.UUID              // zero for dry runs
	VideoID    string                 // target artifact id
	UserID     string                 // owning user
	Inputs     map[string]string      // slot name -> entity id
	Parameters map[string]interface{} // parsed, defaulted parameters
}

// Output maps produced output slot names to entity ids.
type Output struct {
	Outputs map[string]string
}
