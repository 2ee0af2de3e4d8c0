package schema

import (
	"fmt"
	"strings"
)

// Validate checks the policy for:
//   - At least one family
//   - Duplicate family names
//   - Required fields present and non-empty
//   - Field mappings that rename a field onto itself, chain into another
//     mapping's source, or share a destination. Applying such a mapping
//     would depend on map iteration order.
func (p *Policy) Validate() error {
	if len(p.Families) == 0 {
		return fmt.Errorf("policy: at least one family is required")
	}

	seen := make(map[string]int)
	var errs []string

	for i, f := range p.Families {
		if f.Name == "" {
			errs = append(errs, fmt.Sprintf("families[%d]: name is required", i))
			continue
		}
		if prev, ok := seen[f.Name]; ok {
			errs = append(errs, fmt.Sprintf("duplicate family %q (families[%d] and families[%d])", f.Name, prev, i))
		} else {
			seen[f.Name] = i
		}
		for j, field := range f.Required {
			if field == "" {
				errs = append(errs, fmt.Sprintf("family %s: required[%d] is empty", f.Name, j))
			}
		}
		dests := make(map[string]bool, len(f.FieldMapping))
		for src, dst := range f.FieldMapping {
			if src == "" || dst == "" {
				errs = append(errs, fmt.Sprintf("family %s: field_mapping entries must be non-empty", f.Name))
			} else if src == dst {
				errs = append(errs, fmt.Sprintf("family %s: field_mapping %q maps onto itself", f.Name, src))
			} else if _, chained := f.FieldMapping[dst]; chained {
				errs = append(errs, fmt.Sprintf("family %s: field_mapping %q -> %q chains into another mapping", f.Name, src, dst))
			} else if dests[dst] {
				errs = append(errs, fmt.Sprintf("family %s: field_mapping destination %q is used more than once", f.Name, dst))
			} else {
				dests[dst] = true
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("policy validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
