package tree

import "sort"

// AssignOrdinals numbers persons and families 1..n in creation order and
// derives every cross reference from those numbers. It can run again after
// the graph grows; existing ordinals do not change.
func (t *Tree) AssignOrdinals() {
	for i, id := range t.personOrder {
		t.persons[id].Ordinal = i + 1
	}
	for i, key := range t.familyOrder {
		t.families[key].Ordinal = i + 1
	}

	for _, key := range t.familyOrder {
		f := t.families[key]
		f.husbandOrdinal = t.personOrdinal(key.Father)
		f.wifeOrdinal = t.personOrdinal(key.Mother)
		f.childOrdinals = f.childOrdinals[:0]
		for _, id := range f.Children.Items() {
			if n := t.personOrdinal(id); n > 0 {
				f.childOrdinals = append(f.childOrdinals, n)
			}
		}
		sort.Ints(f.childOrdinals)
	}

	for _, id := range t.personOrder {
		p := t.persons[id]
		p.famsOrdinals = t.familyOrdinals(p.famsOrdinals[:0], p.Unions.Items())
		p.famcOrdinals = t.familyOrdinals(p.famcOrdinals[:0], p.ChildOf.Items())
	}
}

func (t *Tree) personOrdinal(id string) int {
	if p, ok := t.persons[id]; ok {
		return p.Ordinal
	}
	return 0
}

// familyOrdinals appends the ordinals of the keys that have a family, sorted.
func (t *Tree) familyOrdinals(dst []int, keys []FamilyKey) []int {
	for _, key := range keys {
		if f, ok := t.families[key]; ok {
			dst = append(dst, f.Ordinal)
		}
	}
	sort.Ints(dst)
	return dst
}
