// Package types defines the persisted entities, the application
// configuration record, and the standard errors shared by the rtodo storage
// core.
package types
