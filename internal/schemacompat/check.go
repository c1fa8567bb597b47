package schemacompat

import "fmt"

// Check re-walks a transformed tree and returns every remaining violation of
// the profile's dialect. An empty result means the schema is safe to send.
// Any violation is fatal before the network is touched.
func Check(schema map[string]any, profile Profile) []string {
	var violations []string
	checkNode(schema, profile, "#", &violations)
	return violations
}

func checkNode(v any, profile Profile, path string, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		if _, ok := t["$ref"]; ok {
			*out = append(*out, fmt.Sprintf("%s: unresolved $ref", path))
		}
		if _, ok := t["$defs"]; ok {
			*out = append(*out, fmt.Sprintf("%s: leftover $defs", path))
		}
		if _, ok := t["definitions"]; ok {
			*out = append(*out, fmt.Sprintf("%s: leftover definitions", path))
		}
		if !profile.AllowTypeArrays {
			if _, ok := t["type"].([]any); ok {
				*out = append(*out, fmt.Sprintf("%s: type array not supported", path))
			}
			if _, ok := t["nullable"]; ok {
				*out = append(*out, fmt.Sprintf("%s: nullable not supported", path))
			}
		}
		if profile.StrictObjects && isObjectNode(t) {
			if ap, ok := t["additionalProperties"].(bool); !ok || ap {
				*out = append(*out, fmt.Sprintf("%s: object missing additionalProperties:false", path))
			}
		}
		if typ, _ := t["type"].(string); typ == "array" {
			if _, ok := t["items"]; !ok {
				*out = append(*out, fmt.Sprintf("%s: array missing items", path))
			}
		}

		if props, ok := t["properties"].(map[string]any); ok {
			for name, sub := range props {
				checkNode(sub, profile, path+"/properties/"+name, out)
			}
		}
		if items, ok := t["items"]; ok {
			checkNode(items, profile, path+"/items", out)
		}
		for _, key := range []string{"anyOf", "oneOf", "allOf"} {
			if variants, ok := t[key].([]any); ok {
				for i, sub := range variants {
					checkNode(sub, profile, fmt.Sprintf("%s/%s/%d", path, key, i), out)
				}
			}
		}
	case []any:
		for i, el := range t {
			checkNode(el, profile, fmt.Sprintf("%s/%d", path, i), out)
		}
	}
}
