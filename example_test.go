package espalier_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/state"
)

// ExampleNew demonstrates the full editing lifecycle: build a draft,
// publish it, keep editing, and roll the published partition back.
// Everything runs in memory, which is the default backend.
func ExampleNew() {
	engine := espalier.New()
	ctx := context.Background()

	// 1. Build the draft. Each edit is a new immutable snapshot.
	_, err := engine.EditDraft(ctx, "site-1", "alice",
		state.AddSection("main", domain.VisibilityRule{}))
	if err != nil {
		log.Fatal(err)
	}

	draft, err := engine.EditDraft(ctx, "site-1", "alice",
		state.AddComponent("main", domain.ComponentConfig{
			ID:           "hero-1",
			TemplateType: "hero",
			Parameters:   map[string]any{"title": "Welcome"},
		}))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("draft at sequence %d\n", draft.Sequence)

	// 2. Publish: the draft's content becomes published version 1.
	published, err := engine.Publish(ctx, "site-1", "alice")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("published at sequence %d\n", published.Sequence)

	// 3. Editing continues without touching the live version.
	_, err = engine.EditDraft(ctx, "site-1", "alice",
		state.SetThemeToken("color.primary", "#336699"))
	if err != nil {
		log.Fatal(err)
	}
	if _, err = engine.Publish(ctx, "site-1", "alice"); err != nil {
		log.Fatal(err)
	}

	// 4. Rollback copies version 1 forward as version 3; nothing is
	// erased from history.
	restored, err := engine.RollbackPublished(ctx, "site-1", "alice", 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("rolled back to content of version 1, now sequence %d\n", restored.Sequence)

	history, err := engine.History(ctx, "site-1", domain.PartitionPublished, 0, 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("published history holds %d versions\n", len(history))

	// Output:
	// draft at sequence 2
	// published at sequence 1
	// rolled back to content of version 1, now sequence 3
	// published history holds 3 versions
}

// ExampleEngine_Preview shows the read-only draft projection with
// visibility resolution for a concrete viewer.
func ExampleEngine_Preview() {
	engine := espalier.New()
	ctx := context.Background()

	_, err := engine.EditDraft(ctx, "site-1", "alice",
		state.AddSection("main", domain.VisibilityRule{}))
	if err != nil {
		log.Fatal(err)
	}
	_, err = engine.EditDraft(ctx, "site-1", "alice",
		state.AddComponent("main", domain.ComponentConfig{
			ID:           "promo-1",
			TemplateType: "promo",
			Visibility:   domain.VisibilityRule{Kind: domain.RuleAuthenticated},
		}))
	if err != nil {
		log.Fatal(err)
	}

	snapshot, err := engine.Preview(ctx, "site-1")
	if err != nil {
		log.Fatal(err)
	}

	anonymous := snapshot.Resolve(domain.ViewerContext{})
	member := snapshot.Resolve(domain.ViewerContext{Authenticated: true})
	fmt.Printf("anonymous sees %d components\n", len(anonymous[0].Components))
	fmt.Printf("member sees %d components\n", len(member[0].Components))

	// Output:
	// anonymous sees 0 components
	// member sees 1 components
}
