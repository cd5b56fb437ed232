package model

import "strings"

// NamedAsset is a name with an optional icon, used for types and weather.
type NamedAsset struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// CPRange is an inclusive combat power range.
type CPRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// RaidCombatPower holds the unboosted and weather boosted ranges.
type RaidCombatPower struct {
	Normal  CPRange `json:"normal"`
	Boosted CPRange `json:"boosted"`
}

// RaidRecord is one entry of the raids feed.
type RaidRecord struct {
	Name           string          `json:"name"`
	Tier           string          `json:"tier"`
	CanBeShiny     bool            `json:"canBeShiny"`
	Types          []NamedAsset    `json:"types"`
	CombatPower    RaidCombatPower `json:"combatPower"`
	BoostedWeather []NamedAsset    `json:"boostedWeather"`
	Image          string          `json:"image"`
}

// TypeNames returns the names of the raid boss types.
func (r RaidRecord) TypeNames() []string { return assetNames(r.Types) }

// WeatherNames returns the names of the boosting weathers.
func (r RaidRecord) WeatherNames() []string { return assetNames(r.BoostedWeather) }

func assetNames(in []NamedAsset) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a.Name != "" {
			out = append(out, a.Name)
		}
	}
	return out
}

// RaidTier is the fixed bucket a raid boss is rendered in.
type RaidTier int

// Raid tiers in render order.
const (
	TierUnknown RaidTier = iota
	TierEntry
	TierStandard
	TierStrong
	TierSpecial
)

// RaidTiers lists the known tiers in render order.
var RaidTiers = []RaidTier{TierEntry, TierStandard, TierStrong, TierSpecial}

// String returns the tier's display label.
func (t RaidTier) String() string {
	switch t {
	case TierEntry:
		return "Tier 1"
	case TierStandard:
		return "Tier 3"
	case TierStrong:
		return "Tier 5"
	case TierSpecial:
		return "Mega"
	default:
		return "unknown"
	}
}

// Detailed reports whether raids of this tier render a multi-line block.
func (t RaidTier) Detailed() bool { return t == TierStrong || t == TierSpecial }

// ParseRaidTier maps a feed tier label to a RaidTier.
func ParseRaidTier(raw string) RaidTier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tier 1", "1-star raids", "1-star", "tier1":
		return TierEntry
	case "tier 3", "3-star raids", "3-star", "tier3":
		return TierStandard
	case "tier 5", "5-star raids", "5-star", "tier5":
		return TierStrong
	case "mega", "mega raids":
		return TierSpecial
	default:
		return TierUnknown
	}
}
