// Package schemacompat rewrites a canonical JSON Schema into the dialect a
// specific provider's strict structured-output mode accepts. All rewrites are
// pure: they return new trees and never touch the caller's input.
//
// Order matters. Refs must be inlined before unions are dropped or object
// constraints enforced, because those passes need concrete resolved nodes.
package schemacompat

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Clone deep-copies a decoded JSON tree. Shared subtrees are copied once per
// occurrence; cycles (possible when the caller assembled the tree by hand)
// terminate via an identity-keyed visited set.
func Clone(v any) any {
	return cloneGuarded(v, map[uintptr]bool{})
}

func cloneGuarded(v any, seen map[uintptr]bool) any {
	switch t := v.(type) {
	case map[string]any:
		p := reflect.ValueOf(t).Pointer()
		if seen[p] {
			return map[string]any{}
		}
		seen[p] = true
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = cloneGuarded(el, seen)
		}
		delete(seen, p)
		return out
	case []any:
		p := reflect.ValueOf(t).Pointer()
		if seen[p] {
			return []any{}
		}
		seen[p] = true
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneGuarded(el, seen)
		}
		delete(seen, p)
		return out
	default:
		return v
	}
}

// RenameDefinitionsToDefs rewrites the legacy "definitions" keyword and its
// "#/definitions/X" ref form to the draft 2020-12 "$defs" spelling.
func RenameDefinitionsToDefs(schema map[string]any) map[string]any {
	out := Clone(schema).(map[string]any)
	renameDefsInPlace(out)
	return out
}

func renameDefsInPlace(v any) {
	switch t := v.(type) {
	case map[string]any:
		if defs, ok := t["definitions"]; ok {
			if _, clash := t["$defs"]; !clash {
				t["$defs"] = defs
			}
			delete(t, "definitions")
		}
		if ref, ok := t["$ref"].(string); ok {
			t["$ref"] = strings.Replace(ref, "#/definitions/", "#/$defs/", 1)
		}
		for _, el := range t {
			renameDefsInPlace(el)
		}
	case []any:
		for _, el := range t {
			renameDefsInPlace(el)
		}
	}
}

// FlattenRootRef replaces a root that is a bare $ref to a definition with a
// clone of that definition. Many providers require a literal object at the
// root, not an indirection. Definitions are carried over so nested refs still
// resolve.
func FlattenRootRef(schema map[string]any) map[string]any {
	ref, ok := schema["$ref"].(string)
	if !ok {
		return Clone(schema).(map[string]any)
	}
	defs, _ := schema["$defs"].(map[string]any)
	target, ok := lookupRef(ref, defs)
	if !ok {
		return Clone(schema).(map[string]any)
	}

	out := Clone(target).(map[string]any)
	if defs != nil {
		if _, clash := out["$defs"]; !clash {
			out["$defs"] = Clone(defs)
		}
	}
	return out
}

func lookupRef(ref string, defs map[string]any) (map[string]any, bool) {
	name, ok := strings.CutPrefix(ref, "#/$defs/")
	if !ok {
		return nil, false
	}
	if defs == nil {
		return nil, false
	}
	target, ok := defs[name].(map[string]any)
	return target, ok
}

// InlineRefs resolves every $ref against the root's $defs and deletes $defs
// afterwards. Cyclic definitions cannot be inlined; the ref is left in place
// for Check to flag.
func InlineRefs(schema map[string]any) map[string]any {
	root := Clone(schema).(map[string]any)
	defs, _ := root["$defs"].(map[string]any)

	resolved := inlineNode(root, defs, map[string]bool{}).(map[string]any)
	delete(resolved, "$defs")
	return resolved
}

func inlineNode(v any, defs map[string]any, resolving map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok {
			if resolving[ref] {
				return t // cycle; leave the ref for Check
			}
			if target, ok := lookupRef(ref, defs); ok {
				resolving[ref] = true
				inlined := inlineNode(Clone(target), defs, resolving)
				delete(resolving, ref)
				return inlined
			}
			return t // dangling ref; Check reports it
		}
		out := make(map[string]any, len(t))
		for k, el := range t {
			if k == "$defs" {
				continue
			}
			out[k] = inlineNode(el, defs, resolving)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = inlineNode(el, defs, resolving)
		}
		return out
	default:
		return v
	}
}

// DropUnionCombinators keeps only the first variant of every anyOf/oneOf/
// allOf. This is a deliberate, lossy compatibility step for providers with
// poor union support, not a general-purpose simplifier: the validation
// contract is narrowed to the first branch.
func DropUnionCombinators(schema map[string]any) map[string]any {
	return dropUnions(Clone(schema)).(map[string]any)
}

func dropUnions(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for _, key := range []string{"anyOf", "oneOf", "allOf"} {
			variants, ok := t[key].([]any)
			if !ok || len(variants) == 0 {
				continue
			}
			first, ok := variants[0].(map[string]any)
			if !ok {
				continue
			}
			delete(t, key)
			// The first variant's fields win over siblings on the union node.
			for k, el := range first {
				t[k] = el
			}
		}
		for k, el := range t {
			t[k] = dropUnions(el)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = dropUnions(el)
		}
		return t
	default:
		return v
	}
}

// EnforceStrictObjects closes every object node: additionalProperties is
// forced to false and required becomes exactly the declared property keys, in
// sorted order. Idempotent.
func EnforceStrictObjects(schema map[string]any) map[string]any {
	return strictObjects(Clone(schema)).(map[string]any)
}

func strictObjects(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if isObjectNode(t) {
			t["additionalProperties"] = false
			props, _ := t["properties"].(map[string]any)
			keys := make([]string, 0, len(props))
			for k := range props {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			required := make([]any, len(keys))
			for i, k := range keys {
				required[i] = k
			}
			t["required"] = required
		}
		for k, el := range t {
			t[k] = strictObjects(el)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = strictObjects(el)
		}
		return t
	default:
		return v
	}
}

// isObjectNode reports whether the node's type is, or includes, "object".
// Nodes with properties but no explicit type count as objects.
func isObjectNode(node map[string]any) bool {
	switch t := node["type"].(type) {
	case string:
		return t == "object"
	case []any:
		for _, el := range t {
			if el == "object" {
				return true
			}
		}
		return false
	}
	_, hasProps := node["properties"]
	return hasProps
}

// StripUnsupportedKeywords removes the keywords a provider profile rejects.
func StripUnsupportedKeywords(schema map[string]any, profile Profile) map[string]any {
	if len(profile.UnsupportedKeywords) == 0 {
		return Clone(schema).(map[string]any)
	}
	drop := make(map[string]bool, len(profile.UnsupportedKeywords))
	for _, k := range profile.UnsupportedKeywords {
		drop[k] = true
	}
	return stripKeywords(Clone(schema), drop).(map[string]any)
}

func stripKeywords(v any, drop map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		for k, el := range t {
			if drop[k] {
				delete(t, k)
				continue
			}
			// "properties" values are schemas, but property names themselves
			// must survive even when they collide with a dropped keyword.
			if k == "properties" {
				if props, ok := el.(map[string]any); ok {
					for name, sub := range props {
						props[name] = stripKeywords(sub, drop)
					}
					continue
				}
			}
			t[k] = stripKeywords(el, drop)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = stripKeywords(el, drop)
		}
		return t
	default:
		return v
	}
}

// TypeArraysToAnyOf converts draft-style type arrays ("type": ["string",
// "null"]) into an anyOf of single-type schemas. Cerebras rejects type
// arrays but accepts anyOf.
func TypeArraysToAnyOf(schema map[string]any) map[string]any {
	return typeArrays(Clone(schema)).(map[string]any)
}

func typeArrays(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if types, ok := t["type"].([]any); ok && len(types) > 0 {
			variants := make([]any, 0, len(types))
			for _, typ := range types {
				variants = append(variants, map[string]any{"type": typ})
			}
			delete(t, "type")
			t["anyOf"] = variants
		}
		for k, el := range t {
			t[k] = typeArrays(el)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = typeArrays(el)
		}
		return t
	default:
		return v
	}
}

// NullableToAnyOf rewrites the OpenAPI-style nullable:true annotation into
// anyOf:[original, {type:null}].
func NullableToAnyOf(schema map[string]any) map[string]any {
	return nullable(Clone(schema)).(map[string]any)
}

func nullable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, el := range t {
			t[k] = nullable(el)
		}
		if isNullable, ok := t["nullable"].(bool); ok {
			delete(t, "nullable")
			if isNullable {
				base := make(map[string]any, len(t))
				for k, el := range t {
					base[k] = el
					delete(t, k)
				}
				t["anyOf"] = []any{base, map[string]any{"type": "null"}}
			}
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = nullable(el)
		}
		return t
	default:
		return v
	}
}

// ForProvider runs the profile's full rewrite pipeline over the canonical
// schema and verifies the result. A non-empty violation list from Check is a
// fatal, pre-network incompatibility.
func ForProvider(schema map[string]any, profile Profile) (map[string]any, []string) {
	out := RenameDefinitionsToDefs(schema)
	out = FlattenRootRef(out)
	out = InlineRefs(out)
	if profile.DropUnions {
		out = DropUnionCombinators(out)
	}
	if profile.StrictObjects {
		out = EnforceStrictObjects(out)
	}
	if profile.ConvertTypeArrays {
		out = TypeArraysToAnyOf(out)
		out = NullableToAnyOf(out)
	}
	out = StripUnsupportedKeywords(out, profile)

	if violations := Check(out, profile); len(violations) > 0 {
		return nil, violations
	}
	return out, nil
}

// WrapInDefs rewraps a transformed schema as {"$ref": "#/$defs/<name>",
// "$defs": {<name>: schema}}. Cerebras keys its strict schemas this way.
func WrapInDefs(name string, schema map[string]any) map[string]any {
	return map[string]any{
		"$ref":  fmt.Sprintf("#/$defs/%s", name),
		"$defs": map[string]any{name: schema},
	}
}
