// Package fingerprint implements the Metadata Canonicalizer & Hasher
// (spec.md §4.3): it projects an item-version to the reduced field set,
// recursively normalizes and sorts it, and MD5-hashes the deterministic
// byte sequence that results. The algorithm is ported from the original
// figshare/Utils.py sorter_api_result/standardize_api_result functions,
// adapted to the reduced-field, authors-preserved rule spec.md specifies.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// ReducedFields is the set of item-version fields that participate in the
// Fingerprint. All other fields are excluded (spec.md §4.3 step 1).
type ReducedFields struct {
	Description      interface{}
	FundingList      interface{}
	RelatedMaterials interface{}
}

// Compute reduces, normalizes, sorts, and hashes r, returning the 32-hex
// lowercase Fingerprint string (spec.md §4.3).
func Compute(r ReducedFields) string {
	reduced := map[string]interface{}{
		"description":       r.Description,
		"funding_list":      r.FundingList,
		"related_materials": r.RelatedMaterials,
	}
	return hashValue(reduced)
}

// ComputeFull canonicalizes and hashes an entire record — not just the
// reduced {description, funding_list, related_materials} triple — so that
// any change anywhere in record affects the Fingerprint (spec.md §4.9 step
// 2: a Collection's Fingerprint must cover its full payload, "articles"
// list included, since collection membership can change independently of
// description/funding/related_materials).
func ComputeFull(record map[string]interface{}) string {
	return hashValue(record)
}

func hashValue(value interface{}) string {
	normalized := normalize(value)
	sorted := sortValue(normalized, false)
	var sb strings.Builder
	stringify(sorted, &sb)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// normalize replaces "null" strings and nil/absent values with "", and
// descends into maps and lists (spec.md §4.3 step 2).
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if v == "null" {
			return ""
		}
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// sortValue recursively sorts map keys lexicographically (preserving the
// order of a key literally named "authors") and sorts lists: lists of maps
// by the tuple of all map-values-as-strings, lists of scalars ascending
// (spec.md §4.3 step 3).
func sortValue(value interface{}, isAuthorsList bool) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(v))
		for _, k := range keys {
			out[k] = sortValue(v[k], k == "authors")
		}
		return orderedMap{keys: keys, values: out}
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = sortValue(val, false)
		}
		if isAuthorsList {
			// authors preserves input order at every depth (spec.md §9).
			return out
		}
		sortList(out)
		return out
	default:
		return v
	}
}

// orderedMap carries a map's sorted key order through to stringify, since
// Go map iteration order is randomized and the Fingerprint must be
// deterministic.
type orderedMap struct {
	keys   []string
	values map[string]interface{}
}

func sortList(list []interface{}) {
	if len(list) == 0 {
		return
	}
	if _, ok := list[0].(orderedMap); ok {
		sort.Slice(list, func(i, j int) bool {
			return tupleKey(list[i]) < tupleKey(list[j])
		})
		return
	}
	sort.Slice(list, func(i, j int) bool {
		return scalarKey(list[i]) < scalarKey(list[j])
	})
}

func tupleKey(value interface{}) string {
	om, ok := value.(orderedMap)
	if !ok {
		return scalarKey(value)
	}
	var sb strings.Builder
	for _, k := range om.keys {
		sb.WriteString(scalarKey(om.values[k]))
		sb.WriteByte(0)
	}
	return sb.String()
}

func scalarKey(value interface{}) string {
	var sb strings.Builder
	stringify(value, &sb)
	return sb.String()
}

// stringify concatenates all leaf values in post-order (spec.md §4.3 step 4).
func stringify(value interface{}, sb *strings.Builder) {
	switch v := value.(type) {
	case orderedMap:
		for _, k := range v.keys {
			stringify(v.values[k], sb)
		}
	case []interface{}:
		for _, item := range v {
			stringify(item, sb)
		}
	case string:
		sb.WriteString(v)
	case nil:
		// normalized away above; defensive no-op
	default:
		sb.WriteString(scalarFallback(v))
	}
}

func scalarFallback(v interface{}) string {
	switch t := v.(type) {
	case float64:
		return trimFloat(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
