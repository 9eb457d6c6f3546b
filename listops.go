package atree

import "sort"

// binarySearchInt64 reports whether v is present in the sorted slice hay.
// Mirrors predicates.rs's use of binary_search for Set predicates.
func binarySearchInt64(hay []int64, v int64) bool {
	i := sort.Search(len(hay), func(i int) bool { return hay[i] >= v })
	return i < len(hay) && hay[i] == v
}

func binarySearchStringRef(hay []StringRef, v StringRef) bool {
	i := sort.Search(len(hay), func(i int) bool { return hay[i] >= v })
	return i < len(hay) && hay[i] == v
}

// List-predicate evaluation builds a membership set from the event's list
// value. The original implementation merge-joins two sorted slices; spec §3
// explicitly allows event-side list values to arrive unsorted, so a
// two-pointer merge is unsafe here and a hash-set membership test is used
// instead (same result for OneOf/NoneOf/AllOf/NotAllOf — see DESIGN.md).

func listIntersects(p *Predicate, v AttributeValue) bool {
	switch v.Kind {
	case KindBoolList:
		set := map[bool]struct{}{}
		for _, b := range v.BoolList {
			set[b] = struct{}{}
		}
		for _, probe := range p.listProbeBools {
			if _, ok := set[probe]; ok {
				return true
			}
		}
	case KindIntList:
		set := make(map[int64]struct{}, len(v.IntList))
		for _, i := range v.IntList {
			set[i] = struct{}{}
		}
		for _, probe := range p.listProbeInts {
			if _, ok := set[probe]; ok {
				return true
			}
		}
	case KindFloatList:
		set := make(map[float64]struct{}, len(v.FloatList))
		for _, f := range v.FloatList {
			set[f] = struct{}{}
		}
		for _, probe := range p.listProbeFloats {
			if _, ok := set[probe]; ok {
				return true
			}
		}
	case KindStringList:
		set := make(map[StringRef]struct{}, len(v.StringList))
		for _, s := range v.StringList {
			set[s] = struct{}{}
		}
		for _, probe := range p.listProbeStrs {
			if _, ok := set[probe]; ok {
				return true
			}
		}
	}
	return false
}

// listSubsetOf reports whether every element of the predicate's probe list
// appears in the event's list value. Vacuously true for an empty probe
// list, matching spec §4.1's AllOf semantics.
func listSubsetOf(p *Predicate, v AttributeValue) bool {
	switch v.Kind {
	case KindBoolList:
		if len(p.listProbeBools) == 0 {
			return true
		}
		set := map[bool]struct{}{}
		for _, b := range v.BoolList {
			set[b] = struct{}{}
		}
		for _, probe := range p.listProbeBools {
			if _, ok := set[probe]; !ok {
				return false
			}
		}
		return true
	case KindIntList:
		if len(p.listProbeInts) == 0 {
			return true
		}
		set := make(map[int64]struct{}, len(v.IntList))
		for _, i := range v.IntList {
			set[i] = struct{}{}
		}
		for _, probe := range p.listProbeInts {
			if _, ok := set[probe]; !ok {
				return false
			}
		}
		return true
	case KindFloatList:
		if len(p.listProbeFloats) == 0 {
			return true
		}
		set := make(map[float64]struct{}, len(v.FloatList))
		for _, f := range v.FloatList {
			set[f] = struct{}{}
		}
		for _, probe := range p.listProbeFloats {
			if _, ok := set[probe]; !ok {
				return false
			}
		}
		return true
	case KindStringList:
		if len(p.listProbeStrs) == 0 {
			return true
		}
		set := make(map[StringRef]struct{}, len(v.StringList))
		for _, s := range v.StringList {
			set[s] = struct{}{}
		}
		for _, probe := range p.listProbeStrs {
			if _, ok := set[probe]; !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
