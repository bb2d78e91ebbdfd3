// Package l4colour owns Layer 4 (Colour) of the face-mesh data model.
//
// Responsibilities: baseline-relative deviation colouring per landmark or
// per anatomical cluster, on a continuous or σ-normalised scale, and
// frame-to-frame movement colouring of filtered sequences.
// Key types: Colorizer, Colouring, Tier, Movement.
//
// Dependency rule: L4 may depend on L1-L2, but never on L5+.
package l4colour
