// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// MapDocument adapts a nested manifest mapping, as produced by TOML
// unmarshalling or held by a manifest generator prior to serialization, to
// the Document interface. Mutation happens in place on the underlying maps.
type MapDocument struct {
	root map[string]any
}

// NewMapDocument wraps an existing manifest mapping. The mapping is not
// copied; injections mutate it directly.
func NewMapDocument(root map[string]any) *MapDocument {
	return &MapDocument{root: root}
}

// InjectMap mutates a manifest mapping in place, performing the full
// attestation-gated, idempotent injection of libPath. Returns true if the
// mapping was modified. This is the structured-representation counterpart
// of Engine.Run for collaborators that already resolved the library path.
func InjectMap(root map[string]any, libPath string) bool {
	doc := NewMapDocument(root)
	if !doc.Attested() || doc.Contains(libPath) {
		return false
	}
	envModified := doc.PrependPreload(libPath)
	trustedModified := doc.EnsureTrustedFile(libPath)
	return envModified || trustedModified
}

// InjectTOML is the serialization adapter around InjectMap: it unmarshals
// manifest TOML, mutates the mapping, and marshals back. The returned bool
// reports whether anything changed; on false the input bytes are returned
// untouched.
func InjectTOML(data []byte, libPath string) ([]byte, bool, error) {
	var root map[string]any
	if err := toml.Unmarshal(data, &root); err != nil {
		return data, false, err
	}
	if !InjectMap(root, libPath) {
		return data, false, nil
	}
	out, err := toml.Marshal(root)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

// Attested reports whether the mapping sets sgx.remote_attestation to
// "dcap" (case-insensitive).
func (d *MapDocument) Attested() bool {
	sgx, ok := d.table(attestationTable)
	if !ok {
		return false
	}
	mode, ok := sgx["remote_attestation"].(string)
	return ok && strings.EqualFold(mode, attestationModeDCAP)
}

// Contains approximates the text guard over the structured form: it checks
// the slots an injection would have touched, the preload environment value
// (sub-mapping or array element) and the trusted-files entries.
func (d *MapDocument) Contains(s string) bool {
	if env, ok := d.envTable(false); ok {
		if value, ok := env["LD_PRELOAD"].(string); ok && strings.Contains(value, s) {
			return true
		}
	}
	if _, entries, ok := d.envArray(); ok {
		for _, item := range entries {
			if str, ok := item.(string); ok && strings.Contains(str, s) {
				return true
			}
		}
	}
	if sgx, ok := d.table(attestationTable); ok {
		for _, item := range anySlice(sgx["trusted_files"]) {
			if str, ok := item.(string); ok && strings.Contains(str, s) {
				return true
			}
		}
	}
	return false
}

// PrependPreload ensures libPath leads the colon-delimited LD_PRELOAD
// value of the environment declaration. An existing loader.env array of
// "VAR=value" strings is edited element-wise; the sub-mapping form gets its
// LD_PRELOAD key rewritten, creating intermediate maps as needed.
func (d *MapDocument) PrependPreload(libPath string) bool {
	if outer, entries, ok := d.envArray(); ok {
		return prependToEnvArray(outer, entries, libPath)
	}

	env, _ := d.envTable(true)
	value, _ := env["LD_PRELOAD"].(string)
	if strings.Contains(value, libPath) {
		return false
	}
	if value == "" {
		env["LD_PRELOAD"] = libPath
	} else {
		env["LD_PRELOAD"] = libPath + ":" + value
	}
	return true
}

// prependToEnvArray rewrites the "LD_PRELOAD=..." element of an environment
// array, or appends one, leaving every other element untouched.
func prependToEnvArray(outer map[string]any, entries []any, libPath string) bool {
	for i, item := range entries {
		str, ok := item.(string)
		if !ok || !strings.HasPrefix(str, "LD_PRELOAD=") {
			continue
		}
		value := strings.TrimPrefix(str, "LD_PRELOAD=")
		if strings.Contains(value, libPath) {
			return false
		}
		if value == "" {
			entries[i] = "LD_PRELOAD=" + libPath
		} else {
			entries[i] = "LD_PRELOAD=" + libPath + ":" + value
		}
		outer["env"] = entries
		return true
	}

	outer["env"] = append(entries, "LD_PRELOAD="+libPath)
	return true
}

// EnsureTrustedFile appends a file-scheme entry for libPath to
// sgx.trusted_files, creating the array if absent.
func (d *MapDocument) EnsureTrustedFile(libPath string) bool {
	entry := FileURIPrefix + libPath
	sgx := d.ensureTable(d.root, attestationTable)

	files := anySlice(sgx["trusted_files"])
	for _, item := range files {
		if str, ok := item.(string); ok && str == entry {
			return false
		}
	}
	sgx["trusted_files"] = append(files, entry)
	return true
}

// envArray returns the loader.env (or libos.env) value when it is the
// array-of-strings dialect, along with the parent mapping holding it.
func (d *MapDocument) envArray() (map[string]any, []any, bool) {
	for _, name := range []string{"loader", "libos"} {
		outer, ok := d.table(name)
		if !ok {
			continue
		}
		if entries := anySlice(outer["env"]); entries != nil {
			return outer, entries, true
		}
	}
	return nil, nil, false
}

// envTable returns the loader.env sub-mapping, preferring an existing
// libos.env one for manifests in the old naming. With create set, missing
// intermediate maps are created under loader.
func (d *MapDocument) envTable(create bool) (map[string]any, bool) {
	for _, name := range []string{"loader", "libos"} {
		if outer, ok := d.table(name); ok {
			if env, ok := outer["env"].(map[string]any); ok {
				return env, true
			}
		}
	}
	if !create {
		return nil, false
	}
	loader := d.ensureTable(d.root, "loader")
	return d.ensureTable(loader, "env"), true
}

func (d *MapDocument) table(name string) (map[string]any, bool) {
	t, ok := d.root[name].(map[string]any)
	return t, ok
}

func (d *MapDocument) ensureTable(parent map[string]any, name string) map[string]any {
	if t, ok := parent[name].(map[string]any); ok {
		return t
	}
	t := map[string]any{}
	parent[name] = t
	return t
}

// anySlice normalizes the two slice shapes TOML decoding and hand-built
// mappings produce for trusted_files.
func anySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, str := range s {
			out[i] = str
		}
		return out
	}
	return nil
}
