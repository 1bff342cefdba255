package symbol

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPropertyTable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("interned numbers keep their value and never share a handle", prop.ForAll(
		func(values []int64) bool {
			tbl := NewTable()
			seen := make(map[Handle]bool)
			for _, v := range values {
				h := tbl.InternNumber(v)
				if seen[h] {
					return false
				}
				seen[h] = true
				if tbl.Symbol(h).Value.Num != v {
					return false
				}
			}
			return tbl.Len() == len(values)
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.Property("the last definition of a name wins", prop.ForAll(
		func(name string, times int) bool {
			tbl := NewTable()
			var last Handle
			for i := 0; i < times; i++ {
				last = tbl.Define("g", name, nil)
			}
			h, err := tbl.Lookup(name)
			return err == nil && h == last
		},
		gen.Identifier(),
		gen.IntRange(1, 10),
	))

	properties.Property("rect construction accepts exactly the non-empty rectangles", prop.ForAll(
		func(x1, y1, x2, y2 int) bool {
			_, err := NewRect(x1, y1, x2, y2)
			valid := x1 < x2 && y1 < y2
			return valid == (err == nil)
		},
		gen.IntRange(-50, 50),
		gen.IntRange(-50, 50),
		gen.IntRange(-50, 50),
		gen.IntRange(-50, 50),
	))

	properties.TestingRun(t)
}
