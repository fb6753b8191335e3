package plugin

import (
	"fmt"
	"strings"
)

// ParamSpec declares one parameter a plugin accepts.
type ParamSpec struct {
	Name     string
	Default  interface{}
	Required bool
	// Convert validates and normalizes a supplied raw value. Conversion
	// failures are reported, never allowed to escape the parser.
	Convert func(interface{}) (interface{}, error)
}

// RawParam is a caller-supplied parameter before validation.
type RawParam struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// ParseError describes why parameter parsing failed. It is surfaced to the
// caller before any run record is created.
type ParseError struct {
	Parameter string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("parameter parse error: %s", e.Reason)
	}
	return fmt.Sprintf("parameter %q: %s", e.Parameter, e.Reason)
}

// ParseParameters seeds declared defaults, applies converters to supplied
// values, rejects unknown parameter names, and verifies every required
// parameter is present. On failure it returns a descriptive *ParseError and a
// nil map; it never panics past a converter.
func ParseParameters(specs []ParamSpec, raw []RawParam) (parsed map[string]interface{}, perr *ParseError) {
	byName := make(map[string]ParamSpec, len(specs))
	parsed = make(map[string]interface{})

	for _, spec := range specs {
		byName[spec.Name] = spec
		if spec.Default != nil {
			parsed[spec.Name] = spec.Default
		}
	}

	defer func() {
		if r := recover(); r != nil {
			parsed = nil
			perr = &ParseError{Reason: fmt.Sprintf("converter panicked: %v", r)}
		}
	}()

	for _, p := range raw {
		spec, known := byName[p.Name]
		if !known {
			return nil, &ParseError{Parameter: p.Name, Reason: "unknown parameter"}
		}

		value := p.Value
		if spec.Convert != nil {
			converted, err := spec.Convert(value)
			if err != nil {
				return nil, &ParseError{Parameter: p.Name, Reason: err.Error()}
			}
			value = converted
		}
		parsed[p.Name] = value
	}

	var missing []string
	for _, spec := range specs {
		if !spec.Required {
			continue
		}
		if _, ok := parsed[spec.Name]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{
			Parameter: missing[0],
			Reason:    fmt.Sprintf("required parameter missing (%s)", strings.Join(missing, ", ")),
		}
	}

	return parsed, nil
}
