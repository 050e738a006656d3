package resource

import "fmt"

// FieldName enumerates the partial-update targets update_node_field
// accepts, per spec.md §4.1.
type FieldName string

const (
	FieldID           FieldName = "ID"
	FieldLastModified FieldName = "LastModified"
	FieldName_        FieldName = "Name"
	FieldTitle        FieldName = "Title"
	FieldDescription  FieldName = "Description"
	FieldVisibility   FieldName = "Visibility"
	FieldLicense      FieldName = "License"
	FieldLabels       FieldName = "Labels"
	FieldIdentifiers  FieldName = "Identifiers"
	FieldAuthors      FieldName = "Authors"
	FieldLocation     FieldName = "Location"
	FieldHashes       FieldName = "Hashes"
	FieldStatus       FieldName = "Status"
	FieldContentLen   FieldName = "ContentLen"
)

// FieldMap is the partial update payload store.UpdateNodeField applies
// atomically; only keys present are mutated.
type FieldMap map[FieldName]interface{}

// MergeLabels computes the set-difference + union of current and
// additions/removals while preserving current's relative order and
// appending new entries in the order given — the behavior
// UpdateResource's label mutation is specified to have.
func MergeLabels(current, add, remove []Label) []Label {
	removeSet := make(map[string]bool, len(remove))
	for _, l := range remove {
		removeSet[labelKey(l)] = true
	}
	existing := make(map[string]bool, len(current))
	out := make([]Label, 0, len(current)+len(add))
	for _, l := range current {
		if removeSet[labelKey(l)] {
			continue
		}
		out = append(out, l)
		existing[labelKey(l)] = true
	}
	for _, l := range add {
		key := labelKey(l)
		if existing[key] {
			continue
		}
		out = append(out, l)
		existing[key] = true
	}
	return out
}

func labelKey(l Label) string {
	return fmt.Sprintf("%d\x00%s\x00%s", l.Variant, l.Key, l.Value)
}

// MergeIdentifiers applies the same set-difference + union rule as
// MergeLabels to the flat Identifier list.
func MergeIdentifiers(current, add, remove []Identifier) []Identifier {
	removeSet := make(map[Identifier]bool, len(remove))
	for _, id := range remove {
		removeSet[id] = true
	}
	existing := make(map[Identifier]bool, len(current))
	out := make([]Identifier, 0, len(current)+len(add))
	for _, id := range current {
		if removeSet[id] {
			continue
		}
		out = append(out, id)
		existing[id] = true
	}
	for _, id := range add {
		if existing[id] {
			continue
		}
		out = append(out, id)
		existing[id] = true
	}
	return out
}

// MergeAuthors applies the same rule, keyed on (Name, Orcid).
func MergeAuthors(current, add, remove []Author) []Author {
	key := func(a Author) string { return a.Name + "\x00" + a.Orcid }
	removeSet := make(map[string]bool, len(remove))
	for _, a := range remove {
		removeSet[key(a)] = true
	}
	existing := make(map[string]bool, len(current))
	out := make([]Author, 0, len(current)+len(add))
	for _, a := range current {
		if removeSet[key(a)] {
			continue
		}
		out = append(out, a)
		existing[key(a)] = true
	}
	for _, a := range add {
		k := key(a)
		if existing[k] {
			continue
		}
		out = append(out, a)
		existing[k] = true
	}
	return out
}
