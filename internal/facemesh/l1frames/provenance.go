package l1frames

import "fmt"

// AppliedFilter is one provenance entry: the filter that ran and the
// parameters it ran with. Params holds the filter's typed parameter value.
type AppliedFilter struct {
	Kind   string
	Params interface{}
}

func (a AppliedFilter) String() string {
	return fmt.Sprintf("%s%+v", a.Kind, a.Params)
}

// ProvenanceKinds lists the filter kinds applied to f, in order.
func ProvenanceKinds(f Frame) []string {
	out := make([]string, len(f.Provenance))
	for i, p := range f.Provenance {
		out[i] = p.Kind
	}
	return out
}
