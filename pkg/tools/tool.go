package tools

import (
	"fmt"

	"monarch/pkg/api"
)

// Re-export types from the api package via aliases so tool implementations
// and the registry speak the same types.
type Tool = api.Tool
type Parameter = api.Parameter
type ParamType = api.ParamType
type Descriptor = api.ToolDescriptor

// validParamTypes is the closed set of schema types a parameter may declare.
var validParamTypes = map[api.ParamType]bool{
	api.ParamString:  true,
	api.ParamInteger: true,
	api.ParamNumber:  true,
	api.ParamBoolean: true,
	api.ParamObject:  true,
}

// validateSchema checks a tool's declared parameters before registration.
func validateSchema(t Tool) error {
	seen := make(map[string]bool)
	for _, p := range t.Parameters() {
		if p.Name == "" {
			return fmt.Errorf("tool %q declares a parameter with an empty name", t.Name())
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %q declares parameter %q twice", t.Name(), p.Name)
		}
		seen[p.Name] = true
		if !validParamTypes[p.Type] {
			return fmt.Errorf("tool %q parameter %q has unsupported type %q", t.Name(), p.Name, p.Type)
		}
	}
	return nil
}
