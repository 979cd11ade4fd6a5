package document

// Merge applies patch on top of base and returns the result. Neither input is modified.
//
// Objects merge field by field, recursing where both sides hold an object. Any other
// patch value (array, scalar or explicit null) replaces the base field wholesale, so
// arrays are never concatenated and null sets the field to null without touching
// sibling fields.
func Merge(base, patch Value) Value {
	baseObj, baseIsObj := base.AsObject()
	patchObj, patchIsObj := patch.AsObject()
	if !baseIsObj || !patchIsObj {
		return patch
	}

	merged := baseObj.Clone()
	for _, key := range patchObj.keys {
		pv := patchObj.fields[key]
		if bv, ok := merged.fields[key]; ok && bv.kind == KindObject && pv.kind == KindObject {
			merged.Set(key, Merge(bv, pv))
			continue
		}
		merged.Set(key, pv)
	}
	return ObjectValue(merged)
}
