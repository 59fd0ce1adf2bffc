package mockapi

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/oshokin/secpi-console/internal/domain/entity"
)

// errFilterNotBool is returned when a filter evaluates to a non-boolean value.
var errFilterNotBool = errors.New("filter must evaluate to a boolean")

// filterCache compiles each distinct filter expression once.
type filterCache struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

func newFilterCache() *filterCache {
	return &filterCache{
		programs: make(map[string]*vm.Program),
	}
}

// compile returns the program of a boolean filter such as "ack==0".
func (c *filterCache) compile(filter string) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prog, ok := c.programs[filter]; ok {
		return prog, nil
	}

	prog, err := expr.Compile(filter, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", filter, err)
	}

	c.programs[filter] = prog

	return prog, nil
}

// apply keeps the records matching filter. An empty filter keeps everything.
func (c *filterCache) apply(filter string, items []entity.Entity) ([]entity.Entity, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return items, nil
	}

	prog, err := c.compile(filter)
	if err != nil {
		return nil, err
	}

	result := make([]entity.Entity, 0, len(items))

	for _, item := range items {
		out, err := expr.Run(prog, map[string]any(item))
		if err != nil {
			return nil, fmt.Errorf("evaluate filter %q: %w", filter, err)
		}

		matched, ok := out.(bool)
		if !ok {
			return nil, errFilterNotBool
		}

		if matched {
			result = append(result, item)
		}
	}

	return result, nil
}

// sortRecords orders items by one field; a leading "-" sorts descending.
// Records missing the field go last.
func sortRecords(items []entity.Entity, sort string) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return
	}

	descending := strings.HasPrefix(sort, "-")
	key := strings.TrimPrefix(sort, "-")

	slices.SortStableFunc(items, func(a, b entity.Entity) int {
		va, okA := a[key]
		vb, okB := b[key]

		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}

		result := compareValues(va, vb)
		if descending {
			return -result
		}

		return result
	})
}

// compareValues compares numbers numerically and everything else as text.
func compareValues(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)

	if okA && okB {
		return cmp.Compare(fa, fb)
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}
