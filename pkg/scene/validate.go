package scene

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a finding makes the document unusable
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // document cannot be sent
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   ID                 // which node has the problem (zero if document-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// Validate runs the structural checks on d. An empty slice means the
// document is valid. It never mutates d.
func Validate(d *Document) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(d)...)
	errs = append(errs, validateReferences(d)...)
	errs = append(errs, validateNames(d)...)
	errs = append(errs, validateRoots(d)...)
	errs = append(errs, validatePrimitives(d)...)
	return errs
}

// HasErrors reports whether any finding is an error.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// sortedIDs returns the keys of d.Nodes sorted, so findings come out in a
// stable order.
func sortedIDs(d *Document) []ID {
	ids := make([]ID, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// definitionEdges returns the definitions placed by the members of def.
func definitionEdges(d *Document, def *Node) []ID {
	var out []ID
	for _, m := range d.Members(def) {
		if data, ok := m.Data.(InstanceData); ok {
			out = append(out, data.Definition)
			if !data.Effective.IsZero() {
				out = append(out, data.Effective)
			}
		}
	}
	return out
}

// validateDAG checks that no definition places itself, directly or through
// nested instances, using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = on the current path, black (2) = done.
func validateDAG(d *Document) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[ID]int)
	var errs []ValidationError

	var visit func(id ID) bool // returns true if cycle found
	visit = func(id ID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: definition %s places itself", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node, ok := d.Nodes[id]
		if !ok || node.Kind != KindDefinition {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}
		for _, next := range definitionEdges(d, node) {
			if visit(next) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, n := range d.DefinitionNodes() {
		if color[n.ID] == white {
			if visit(n.ID) {
				// One cycle error is sufficient.
				break
			}
		}
	}
	return errs
}

// validateReferences checks instance targets, definition members and owner
// back-references.
func validateReferences(d *Document) []ValidationError {
	var errs []ValidationError

	for _, id := range sortedIDs(d) {
		node := d.Nodes[id]
		switch data := node.Data.(type) {
		case InstanceData:
			targets := []ID{data.Definition}
			if !data.Effective.IsZero() {
				targets = append(targets, data.Effective)
			}
			for _, target := range targets {
				if t, ok := d.Nodes[target]; !ok || t.Kind != KindDefinition {
					errs = append(errs, ValidationError{
						NodeID:   id,
						Message:  fmt.Sprintf("instance references missing definition %s", target.Short()),
						Severity: SeverityError,
					})
				}
			}
		case DefinitionData:
			if len(data.Members) == 0 {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("definition %q has no members", node.Name),
					Severity: SeverityWarning,
				})
			}
			for _, m := range data.Members {
				member, ok := d.Nodes[m]
				if !ok {
					errs = append(errs, ValidationError{
						NodeID:   id,
						Message:  fmt.Sprintf("member %s does not exist", m.Short()),
						Severity: SeverityError,
					})
					continue
				}
				if member.Owner != id {
					errs = append(errs, ValidationError{
						NodeID:   m,
						Message:  fmt.Sprintf("member of %q but owned by %q", node.Name, member.Owner.Short()),
						Severity: SeverityError,
					})
				}
			}
		}

		if !node.Owner.IsZero() {
			if owner, ok := d.Nodes[node.Owner]; !ok || owner.Kind != KindDefinition {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("owner %s does not exist", node.Owner.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateNames checks that the name index and the definition names agree.
func validateNames(d *Document) []ValidationError {
	var errs []ValidationError

	for name, id := range d.NameIndex {
		n, ok := d.Nodes[id]
		if !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
			continue
		}
		if n.Name != name {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("name index entry %q points at definition named %q", name, n.Name),
				Severity: SeverityError,
			})
		}
	}

	seen := make(map[string]ID)
	for _, n := range d.DefinitionNodes() {
		if prev, ok := seen[n.Name]; ok {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("duplicate definition name %q (also %s)", n.Name, prev.Short()),
				Severity: SeverityError,
			})
			continue
		}
		seen[n.Name] = n.ID
	}
	return errs
}

// validateRoots checks that roots exist and are unowned, and warns about
// objects that are neither top level nor owned.
func validateRoots(d *Document) []ValidationError {
	var errs []ValidationError
	isRoot := make(map[ID]bool, len(d.Roots))

	for _, id := range d.Roots {
		isRoot[id] = true
		n, ok := d.Nodes[id]
		if !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", id.Short()),
				Severity: SeverityError,
			})
			continue
		}
		if !n.Owner.IsZero() {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  "top-level object is also owned by a definition",
				Severity: SeverityError,
			})
		}
	}

	for _, id := range sortedIDs(d) {
		n := d.Nodes[id]
		if n.Kind == KindDefinition || isRoot[id] || !n.Owner.IsZero() {
			continue
		}
		name := n.Name
		if name == "" {
			name = id.Short()
		}
		errs = append(errs, ValidationError{
			NodeID:   id,
			Message:  fmt.Sprintf("object %q is neither top level nor in a definition (orphan)", name),
			Severity: SeverityWarning,
		})
	}
	return errs
}

// validatePrimitives checks primitive dimensions.
func validatePrimitives(d *Document) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(d) {
		switch data := d.Nodes[id].Data.(type) {
		case BoardData:
			if data.Dimensions.X <= 0 || data.Dimensions.Y <= 0 || data.Dimensions.Z <= 0 {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("board dimensions must be positive, got %v", data.Dimensions),
					Severity: SeverityError,
				})
			}
		case DowelData:
			if data.Diameter <= 0 || data.Length <= 0 {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("dowel diameter and length must be positive, got %g x %g", data.Diameter, data.Length),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}
