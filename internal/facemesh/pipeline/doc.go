// Package pipeline runs a full processing session: depth scaling, the
// filter chain, baseline colouring and feature derivation, driven by one
// explicit Config value.
//
// Dependency rule: pipeline sits above L1-L5 and may import any of them;
// nothing under internal/facemesh imports pipeline.
package pipeline
