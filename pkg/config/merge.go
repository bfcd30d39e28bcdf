package config

import "dario.cat/mergo"

// mergeYAMLConfig merges layer over base in place, letting later files
// override earlier ones field-by-field rather than wholesale, the same
// layering behavior the teacher relies on for built-in + user-defined
// configuration merges.
func mergeYAMLConfig(base, layer *GatewayYAMLConfig) error {
	return mergo.Merge(base, layer, mergo.WithOverride, mergo.WithAppendSlice)
}
