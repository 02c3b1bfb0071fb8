package fhir

// Parameters is the FHIR operation input/output resource. The digest engine
// returns one with a single message-digest string parameter.
type Parameters struct {
	ResourceType string      `json:"resourceType"`
	Parameter    []Parameter `json:"parameter,omitempty"`
}

type Parameter struct {
	Name        string      `json:"name"`
	ValueString string      `json:"valueString,omitempty"`
	Part        []Parameter `json:"part,omitempty"`
}

// NewParameters builds a Parameters resource from name/value pairs.
func NewParameters(params ...Parameter) *Parameters {
	return &Parameters{
		ResourceType: "Parameters",
		Parameter:    params,
	}
}

// StringParameter returns the value of the named string parameter and
// whether it was present.
func (p *Parameters) StringParameter(name string) (string, bool) {
	for _, param := range p.Parameter {
		if param.Name == name {
			return param.ValueString, true
		}
	}
	return "", false
}
