// Package purge erases what a previous receive created under a root name so
// the next receive replaces it instead of duplicating it.
package purge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/instancegraph/internal/ctxlog"
	"github.com/chazu/instancegraph/pkg/host"
)

// Report counts what one purge removed.
type Report struct {
	Definitions int // definitions erased
	Objects     int // members and placements erased
	Missing     int // targets already gone
}

// Purger erases definitions from a host definition table.
type Purger struct {
	table host.DefinitionTable
}

// New returns a Purger over t.
func New(t host.DefinitionTable) *Purger {
	return &Purger{table: t}
}

// ByPrefix erases every definition whose name contains prefix. See Matching
// for the order. An empty prefix is rejected.
func (p *Purger) ByPrefix(ctx context.Context, prefix string) (Report, error) {
	if prefix == "" {
		return Report{}, errors.New("purge: empty prefix would match every definition")
	}
	return p.Matching(ctx, func(name string) bool { return strings.Contains(name, prefix) })
}

// Matching erases every definition whose name satisfies match, bottom-up:
// matching definitions nested through instance members go first, then the
// definition's members, then its live placements, then the definition.
// Targets that no longer exist are skipped.
func (p *Purger) Matching(ctx context.Context, match func(name string) bool) (Report, error) {
	var rep Report
	defs, err := p.table.Definitions(ctx)
	if err != nil {
		return rep, fmt.Errorf("purge: list definitions: %w", err)
	}

	done := make(map[string]bool)
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if !match(def.Name()) {
			continue
		}
		if err := p.definition(ctx, def, match, done, &rep); err != nil {
			return rep, err
		}
	}

	ctxlog.FromContext(ctx).Info("purged",
		"definitions", rep.Definitions,
		"objects", rep.Objects,
		"missing", rep.Missing)
	return rep, nil
}

func (p *Purger) definition(ctx context.Context, def host.Definition, match func(string) bool, done map[string]bool, rep *Report) error {
	if done[def.ID()] {
		return nil
	}
	done[def.ID()] = true

	children, err := p.table.Children(ctx, def)
	if errors.Is(err, host.ErrNotFound) {
		rep.Missing++
		return nil
	}
	if err != nil {
		return fmt.Errorf("purge: members of %s: %w", def.Name(), err)
	}

	for _, c := range children {
		inst, ok := c.(host.Instance)
		if !ok {
			continue
		}
		nested, err := p.table.Definition(ctx, inst.DefinitionID())
		if errors.Is(err, host.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("purge: definition of %s: %w", inst.ID(), err)
		}
		if match(nested.Name()) {
			if err := p.definition(ctx, nested, match, done, rep); err != nil {
				return err
			}
		}
	}

	for _, c := range children {
		if err := p.erase(ctx, c, &rep.Objects, rep); err != nil {
			return err
		}
	}

	placements, err := p.table.InstancesOf(ctx, def)
	if err != nil && !errors.Is(err, host.ErrNotFound) {
		return fmt.Errorf("purge: placements of %s: %w", def.Name(), err)
	}
	for _, pl := range placements {
		if err := p.erase(ctx, pl, &rep.Objects, rep); err != nil {
			return err
		}
	}

	ctxlog.FromContext(ctx).Debug("erasing definition", "name", def.Name(), "id", def.ID())
	return p.erase(ctx, def, &rep.Definitions, rep)
}

func (p *Purger) erase(ctx context.Context, obj host.Object, counter *int, rep *Report) error {
	err := p.table.Erase(ctx, obj)
	switch {
	case err == nil:
		*counter++
	case errors.Is(err, host.ErrNotFound):
		rep.Missing++
	default:
		return fmt.Errorf("purge: erase %s: %w", obj.ID(), err)
	}
	return nil
}
