/*
Package state orchestrates all snapshot mutation.

The Manager is the engine's primary write path: it loads the current
snapshot of a partition, applies a pure edit function to its content, and
attempts an optimistic save through the Persister port. It holds no locks
and spawns no goroutines; conflicts are detected by the store and
absorbed by a bounded, configurable retry.
*/
package state
