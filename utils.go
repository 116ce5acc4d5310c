package flagsmith

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// findEnabledFlag returns the enabled flag for the named feature, if any.
func findEnabledFlag(flags []Flag, featureName string) *Flag {
	for i := range flags {
		if flags[i].Feature.Name == featureName && flags[i].Enabled {
			return &flags[i]
		}
	}
	return nil
}

func findTrait(traits []Trait, key string) *Trait {
	for i := range traits {
		if traits[i].TraitKey == key {
			return &traits[i]
		}
	}
	return nil
}

func copyCounts(counts map[string]int) map[string]int {
	c := make(map[string]int, len(counts))
	maps.Copy(c, counts)
	return c
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[Map ~map[K]V, K constraints.Ordered, V any](m Map) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
