// Package l1frames owns Layer 1 (Frames) of the face-mesh data model.
//
// Responsibilities: the landmark frame representation, rigid transform
// records, filter provenance, the error and warning taxonomy shared by
// higher layers, and the anatomical cluster table.
// Key types: Frame, TransformRecord, Mat3, AppliedFilter, Warning,
// ConfigurationError, ClusterTable.
//
// Dependency rule: L1 depends on no other facemesh layer.
// No I/O is allowed in this package.
package l1frames
