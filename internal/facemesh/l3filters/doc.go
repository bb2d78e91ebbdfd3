// Package l3filters owns Layer 3 (Filters) of the face-mesh data model.
//
// Responsibilities: the closed set of sequence filters (rigid alignment,
// centering, uniform scale, outlier removal, custom matrix transform,
// rolling-average smoothing), their typed parameters and JSON form, and
// the ordered filter chain with per-frame provenance.
// Key types: Kind, Params, FilterSpec, Chain, ChainResult.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3filters
