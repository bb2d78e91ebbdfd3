// Package l5features owns Layer 5 (Features) of the face-mesh data model.
//
// Responsibilities: turning aligned landmark sequences into per-frame
// numeric feature rows (landmark displacement and head-pose quaternions)
// for downstream training, plus the selection and labelling helpers that
// build a feature request.
// Key types: Config, Table, Row.
//
// Dependency rule: L5 may depend on L1-L2, but never on filters or
// colouring.
package l5features
