// Package l2align owns Layer 2 (Alignment) of the face-mesh data model.
//
// Responsibilities: Kabsch and Kabsch-Umeyama rigid registration,
// statistical baselines built from the opening frames of a session, and
// whole-sequence alignment against a single reference frame or a baseline
// mean shape.
// Key types: Result, StatisticalBaseline, FrameAligner, AlignmentResult.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2align
