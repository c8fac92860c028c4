package ratectl

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/deepteams/blockvid/internal/dsp"
)

// Table maps a QP to the empirical number of bits one block row costs at
// that QP.
type Table map[int]float64

// UnmarshalYAML accepts integer or quoted keys, so tables written as JSON
// objects ({"0": 1234.5, ...}) load unchanged.
func (t *Table) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("ratectl: line %d: table must be a mapping", n.Line)
	}
	out := make(Table, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		qp, err := strconv.Atoi(k.Value)
		if err != nil {
			return fmt.Errorf("ratectl: line %d: qp key %q: %w", k.Line, k.Value, err)
		}
		var bits float64
		if err := v.Decode(&bits); err != nil {
			return fmt.Errorf("ratectl: line %d: bits for qp %d: %w", v.Line, qp, err)
		}
		out[qp] = bits
	}
	*t = out
	return nil
}

// Tables holds the I- and P-frame tables.
type Tables struct {
	I Table `yaml:"I"`
	P Table `yaml:"P"`
}

func (t Table) validate(name string) error {
	if len(t) == 0 {
		return fmt.Errorf("%w: %s table is empty", ErrInvalidTable, name)
	}
	for qp, bits := range t {
		if qp < 0 || qp > dsp.MaxQP {
			return fmt.Errorf("%w: %s table qp %d outside [0, %d]", ErrInvalidTable, name, qp, dsp.MaxQP)
		}
		if !(bits > 0) {
			return fmt.Errorf("%w: %s table qp %d has non-positive bits %v", ErrInvalidTable, name, qp, bits)
		}
	}
	return nil
}

type entry struct {
	bits float64
	qp   int
}

// lookup is a table sorted by bitcount, ascending. Equal bitcounts keep the
// higher QP first.
type lookup []entry

func newLookup(t Table, scale float64) lookup {
	l := make(lookup, 0, len(t))
	for qp, bits := range t {
		l = append(l, entry{bits: bits * scale, qp: qp})
	}
	sort.Slice(l, func(i, j int) bool {
		if l[i].bits != l[j].bits {
			return l[i].bits < l[j].bits
		}
		return l[i].qp > l[j].qp
	})
	return l
}

// closest returns the QP whose bitcount is nearest to budget. Budgets
// outside the table clamp to its extremes; an exact tie between the two
// bracketing entries selects the lower bitcount. clamped reports whether
// the budget fell outside the table.
func (l lookup) closest(budget float64) (qp int, clamped bool) {
	i := sort.Search(len(l), func(i int) bool { return l[i].bits >= budget })
	switch i {
	case 0:
		return l[0].qp, budget < l[0].bits
	case len(l):
		return l[len(l)-1].qp, true
	}
	lo, hi := l[i-1], l[i]
	if budget-lo.bits <= hi.bits-budget {
		return lo.qp, false
	}
	return hi.qp, false
}
