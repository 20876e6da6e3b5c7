// Package storage defines the persistence collaborator boundary. The engine
// only ever exchanges whole registry snapshots with it.
package storage

import "github.com/aldercy/wyrd/internal/models"

// Provider persists registry snapshots. Implementations must make Save
// atomic from the caller's perspective: a crashed save leaves the previous
// snapshot readable.
type Provider interface {
	// Load returns the last saved snapshot, or an empty map when nothing
	// has been saved yet.
	Load() (map[string]models.Object, error)
	// Save replaces the stored snapshot.
	Save(snapshot map[string]models.Object) error
	// Close releases underlying resources.
	Close() error
}
