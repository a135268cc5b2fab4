// Package tiers holds the subscription-tier policy: the static model
// catalog gating which inference models each tier may use, and the monthly
// message quota with its check-and-decrement workflow.
package tiers

// Tier is a subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Model describes one inference model offered to users.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        Tier   `json:"tier"`
}

// Catalog is the static model table. Availability widens monotonically:
// premium ⊇ basic ⊇ free.
var Catalog = []Model{
	{
		ID:          "llama-3.1-8b-instant",
		Name:        "Llama 3.1 (8B) Instant",
		Description: "Fast responses, good for basic tasks",
		Tier:        TierFree,
	},
	{
		ID:          "meta-llama/llama-4-scout-17b-16e-instruct",
		Name:        "Llama 4 Scout (17B)",
		Description: "Balanced performance and capabilities",
		Tier:        TierBasic,
	},
	{
		ID:          "deepseek-r1-distill-llama-70b",
		Name:        "DeepSeek R1 Distill Llama (70B)",
		Description: "Advanced reasoning and knowledge",
		Tier:        TierPremium,
	},
}

// DefaultModelID is used when a stream request names no model.
const DefaultModelID = "llama-3.1-8b-instant"

// ParseTier normalizes a stored tier string, defaulting to free for
// anything unknown.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierFree, TierBasic, TierPremium:
		return Tier(s)
	default:
		return TierFree
	}
}

// IsModelAvailable reports whether the given model may be used on the given
// tier. Unknown models are available to no one.
func IsModelAvailable(modelID string, tier Tier) bool {
	for _, m := range Catalog {
		if m.ID == modelID {
			return tierIncludes(tier, m.Tier)
		}
	}
	return false
}

// ModelsForTier lists the catalog entries available to a tier.
func ModelsForTier(tier Tier) []Model {
	models := make([]Model, 0, len(Catalog))
	for _, m := range Catalog {
		if tierIncludes(tier, m.Tier) {
			models = append(models, m)
		}
	}
	return models
}

func tierIncludes(have, want Tier) bool {
	rank := map[Tier]int{TierFree: 0, TierBasic: 1, TierPremium: 2}
	return rank[have] >= rank[want]
}
