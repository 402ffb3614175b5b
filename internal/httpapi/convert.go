package httpapi

import (
	"fmt"
	"image/color"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// The admin surface has no generated schema; protobuf clients get
// google.protobuf.Struct values with the same field names as the JSON.

// ── Identities ───────────────────────────────────────────────────────────────

func identityFields(id types.Identity) map[string]any {
	return map[string]any{
		"id":         id.ID,
		"name":       id.Name,
		"category":   id.Category,
		"code":       id.Code,
		"badge_ref":  id.BadgeRef,
		"created_at": id.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func registerRequestFromProto(p *structpb.Struct) types.RegisterRequest {
	f := p.GetFields()
	return types.RegisterRequest{
		Name:     f["name"].GetStringValue(),
		Category: f["category"].GetStringValue(),
		Code:     f["code"].GetStringValue(),
	}
}

// ── Events ───────────────────────────────────────────────────────────────────

func eventsToProto(rows []types.EventRow) (*structpb.Struct, error) {
	list := make([]any, 0, len(rows))
	for _, row := range rows {
		list = append(list, map[string]any{
			"id":          row.Event.ID,
			"occurred_at": row.Event.OccurredAt.UTC().Format(types.TimestampLayout),
			"kind":        string(row.Event.Kind),
			"channel":     row.Event.Channel,
			"identity":    identityFields(row.Identity),
		})
	}
	return structpb.NewStruct(map[string]any{"events": list})
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
