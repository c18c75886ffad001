// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the scheduling engine's core logic, allowing the job processor and its
// collaborators to remain independent of specific database technologies
// or persistence details.
package store
