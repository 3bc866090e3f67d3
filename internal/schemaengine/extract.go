package schemaengine

import (
	"context"
)

// memberName maps a category to its multi-file member name (§8 scenario
// 3: "tables.sql, data.sql, views.sql, functions.sql, events.sql").
func memberName(category ObjectCategory) string {
	return string(category) + ".sql"
}

// Extract produces one Artifact per enabled category, in category-rank
// order (§4.4). When multipleFiles is false the caller is expected to
// concatenate the artifact bodies into a single dump.
func Extract(ctx context.Context, adapter Adapter, features Features) ([]Artifact, error) {
	var artifacts []Artifact
	for _, category := range CreateOrder {
		if !features.Enabled(category) {
			continue
		}

		body, err := adapter.Extract(ctx, category)
		if err != nil {
			return nil, err
		}

		artifacts = append(artifacts, Artifact{
			Category: category,
			Name:     memberName(category),
			Body:     body,
		})
	}
	return artifacts, nil
}
