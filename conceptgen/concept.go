package conceptgen

import "encoding/json"

// ConceptItem is one training-corpus / processed record (spec.md §6
// "Parameter Processor input corpus").
type ConceptItem struct {
	Category          string             `json:"category"`
	Conceptualization []TemplateInstance `json:"conceptualization"`
}

// TemplateInstance is one {template, parameters} record describing a
// single component of the object.
type TemplateInstance struct {
	Template   string                `json:"template"`
	Parameters map[string]ParamValue `json:"parameters"`
}

// ParamValue holds a parameter's values and whether the source JSON
// shape was a bare scalar (treated as dimension 0) or an array — the
// shape is preserved on marshal so process_item/recover_item round trip
// the same document shape the corpus used.
type ParamValue struct {
	Values []float64
	Scalar bool
}

func NewScalarParam(v float64) ParamValue {
	return ParamValue{Values: []float64{v}, Scalar: true}
}

func NewArrayParam(vs []float64) ParamValue {
	return ParamValue{Values: append([]float64(nil), vs...), Scalar: false}
}

func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.Scalar {
		if len(p.Values) != 1 {
			return nil, &Error{Kind: UnknownSchemaEntry, Detail: "scalar ParamValue must hold exactly one value"}
		}
		return json.Marshal(p.Values[0])
	}
	return json.Marshal(p.Values)
}

func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		p.Scalar = true
		p.Values = []float64{scalar}
		return nil
	}
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	p.Scalar = false
	p.Values = arr
	return nil
}
