package fingerprint

import "testing"

func TestComputeStableUnderMapKeyOrdering(t *testing.T) {
	a := ReducedFields{
		Description: map[string]interface{}{"a": "1", "b": "2"},
	}
	b := ReducedFields{
		Description: map[string]interface{}{"b": "2", "a": "1"},
	}
	if Compute(a) != Compute(b) {
		t.Fatalf("fingerprints should be stable across map key ordering")
	}
}

func TestComputeStableUnderNonAuthorsListOrdering(t *testing.T) {
	a := ReducedFields{
		RelatedMaterials: []interface{}{"x", "a", "m"},
	}
	b := ReducedFields{
		RelatedMaterials: []interface{}{"m", "x", "a"},
	}
	if Compute(a) != Compute(b) {
		t.Fatalf("fingerprints should be stable across non-authors list ordering")
	}
}

func TestComputeStableUnderNonReducedFieldPresence(t *testing.T) {
	a := ReducedFields{Description: "same"}
	b := ReducedFields{Description: "same"}
	// Non-reduced fields simply aren't part of ReducedFields, so any
	// ItemVersion field outside {description, funding_list,
	// related_materials} cannot influence Compute's input at all.
	if Compute(a) != Compute(b) {
		t.Fatalf("identical reduced fields must fingerprint identically")
	}
}

func TestComputeAuthorsListOrderPreserved(t *testing.T) {
	a := ReducedFields{
		Description: map[string]interface{}{
			"authors": []interface{}{"Smith", "Jones"},
		},
	}
	b := ReducedFields{
		Description: map[string]interface{}{
			"authors": []interface{}{"Jones", "Smith"},
		},
	}
	if Compute(a) == Compute(b) {
		t.Fatalf("authors list order must be preserved, not sorted, so differently-ordered authors must fingerprint differently")
	}
}

func TestComputeSensitiveToReducedFieldChange(t *testing.T) {
	a := ReducedFields{Description: "first"}
	b := ReducedFields{Description: "second"}
	if Compute(a) == Compute(b) {
		t.Fatalf("changing description must change the fingerprint")
	}

	c := ReducedFields{FundingList: []interface{}{"grant-1"}}
	d := ReducedFields{FundingList: []interface{}{"grant-2"}}
	if Compute(c) == Compute(d) {
		t.Fatalf("changing funding_list must change the fingerprint")
	}
}

func TestComputeNullNormalization(t *testing.T) {
	a := ReducedFields{Description: "null"}
	b := ReducedFields{Description: ""}
	if Compute(a) != Compute(b) {
		t.Fatalf("the string \"null\" must normalize the same as empty string")
	}
}

func TestComputeIs32HexLowercase(t *testing.T) {
	got := Compute(ReducedFields{Description: "anything"})
	if len(got) != 32 {
		t.Fatalf("Compute() returned %d chars, want 32", len(got))
	}
	for _, r := range got {
		isHexLower := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !isHexLower {
			t.Fatalf("Compute() = %q is not 32-hex-lowercase", got)
		}
	}
}

func TestComputeFullSensitiveToArticleMembership(t *testing.T) {
	base := map[string]interface{}{
		"description":  "a collection",
		"funding_list": []interface{}{"grant-1"},
	}

	withoutArticle := map[string]interface{}{
		"description":  base["description"],
		"funding_list": base["funding_list"],
		"articles":     []interface{}{float64(1), float64(2)},
	}
	withArticle := map[string]interface{}{
		"description":  base["description"],
		"funding_list": base["funding_list"],
		"articles":     []interface{}{float64(1), float64(2), float64(3)},
	}

	if ComputeFull(withoutArticle) == ComputeFull(withArticle) {
		t.Fatalf("collections differing only in article membership must fingerprint differently")
	}
}

func TestComputeFullSensitiveToFieldsOutsideReducedTriple(t *testing.T) {
	// ComputeFull hashes the whole record, so unlike Compute it IS
	// sensitive to fields outside {description, funding_list,
	// related_materials} — e.g. a collection's own title.
	a := map[string]interface{}{"title": "first"}
	b := map[string]interface{}{"title": "second"}
	if ComputeFull(a) == ComputeFull(b) {
		t.Fatalf("ComputeFull must be sensitive to any field in the full record")
	}
}
