// Package domain holds the race and player entities and the lifecycle rules
// that govern them. Entities are plain structs mutated through methods that
// preserve the membership invariants; all persistence and event publishing
// happens in higher layers.
package domain
