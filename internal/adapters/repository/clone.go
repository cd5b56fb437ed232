package repository

import "github.com/okian/eventwatch/internal/domain/model"

// cloneState returns a deep enough copy of s that callers cannot alias
// the store's slices.
func cloneState(s State) State {
	return State{
		Notified: append([]string(nil), s.Notified...),
		Raids:    append([]model.RaidRecord(nil), s.Raids...),
		Eggs:     append([]model.EggRecord(nil), s.Eggs...),
		Corrupt:  append([]model.Dataset(nil), s.Corrupt...),
	}
}
