// Package store provides the built-in in-memory implementation of the
// core.AttributeStore contract: per-entity key/value attribute state with
// read-your-writes consistency and ordered, at-least-once change
// notification. Production deployments typically substitute a durable
// backend implementing the same interface.
package store
