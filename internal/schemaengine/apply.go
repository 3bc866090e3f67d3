package schemaengine

import (
	"context"
)

// Apply ingests artifacts and applies them to the target database in
// CreateOrder, regardless of the order they were supplied in, so a
// doctored or reordered manifest cannot smuggle an out-of-order apply
// (§8 scenario 4: "reversing the emission order ... causes SyntaxError on
// restore and is detected before committing" — here, enforced
// structurally by always re-sorting into CreateOrder first).
func Apply(ctx context.Context, adapter Adapter, artifacts []Artifact) error {
	byCategory := make(map[ObjectCategory]Artifact, len(artifacts))
	for _, a := range artifacts {
		byCategory[a.Category] = a
	}

	for _, category := range CreateOrder {
		artifact, ok := byCategory[category]
		if !ok {
			continue
		}
		if err := adapter.Apply(ctx, category, artifact.Body); err != nil {
			return err
		}
	}
	return nil
}
