package model

import (
	"strconv"
	"strings"
)

// EggRecord is one entry of the eggs feed.
type EggRecord struct {
	Name            string  `json:"name"`
	EggType         string  `json:"eggType"`
	IsAdventureSync bool    `json:"isAdventureSync"`
	Image           string  `json:"image"`
	CanBeShiny      bool    `json:"canBeShiny"`
	CombatPower     CPRange `json:"combatPower"`
	IsRegional      bool    `json:"isRegional"`
	IsGiant         bool    `json:"isGiant"`
	Rarity          int     `json:"rarity,omitempty"`
}

// Pool returns the display name of the egg pool this record belongs to.
func (e EggRecord) Pool() string {
	pool := strings.TrimSpace(e.EggType)
	if pool == "" {
		pool = "Unknown"
	}
	if e.IsAdventureSync {
		pool += " (Adventure Sync)"
	}
	return pool
}

// PoolDistance returns the leading kilometre count of the pool, or -1.
func PoolDistance(pool string) int {
	digits := strings.TrimSpace(pool)
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return -1
	}
	n, err := strconv.Atoi(digits[:end])
	if err != nil {
		return -1
	}
	return n
}
