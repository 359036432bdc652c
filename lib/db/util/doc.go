// Package util provides small shared components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - counter: OpsCounter, a mutex guarded counter of applied mutations that is
//     kept separate from the data lock of the engine
package util
