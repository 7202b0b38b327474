/*
Package espalier is a versioned state engine with a draft/publish
workflow, designed to back visual editors and any system that needs
safe concurrent edits with full history.

Every save produces a new immutable snapshot with a monotonically
increasing sequence number; nothing is ever overwritten. Each entity
owns independent partitions (draft and published by default), so
editing never disturbs what visitors see, and publishing never blocks
editing.

# Concept

Espalier treats state changes as an append-only timeline per
(entity, partition). Writers declare the sequence they based their
edit on; a mismatch is a conflict, not a silent overwrite. Rollback
copies an old snapshot forward as a new version, so history stays
intact. The engine manages versioning, concurrency and the lifecycle,
while your application ("Host") manages rendering and authorization.
This Hexagonal Architecture allows Espalier to be embedded behind any
interface: HTTP server, CLI, or another service.

# Key Features

  - Immutable History: every accepted save is a new snapshot; the past is always reconstructable.
  - Optimistic Concurrency: stale saves are rejected with the store's actual sequence, so editors can rebase.
  - Partition Isolation: draft and published evolve independently; publish copies content, never references.
  - Pluggable Storage: in-memory, filesystem and Redis adapters share one contract.

# Usage

Initialize the engine with New. The zero-configuration form runs
in memory; production callers inject a Persister.

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/espalier"
		"github.com/aretw0/espalier/pkg/domain"
		"github.com/aretw0/espalier/pkg/state"
	)

	func main() {
		engine := espalier.New()
		ctx := context.Background()

		_, err := engine.EditDraft(ctx, "site-1", "alice",
			state.AddSection("main", domain.VisibilityRule{}))
		if err != nil {
			log.Fatal(err)
		}

		if _, err := engine.Publish(ctx, "site-1", "alice"); err != nil {
			log.Fatal(err)
		}
	}

See the examples for the full edit, preview, publish and rollback flow.
*/
package espalier
