package store

import (
	"regexp"
	"sort"
)

// FilterOp is the closed set of metadata filter operators. The JSON form
// (`$eq`, `$gt`, ...) is parsed permissively: a bare literal means Eq and
// unrecognized operator keys are skipped, never an error, so an unsupported
// filter degrades to "no constraint" instead of aborting the query.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpContains
)

type Filter struct {
	Field  string
	Op     FilterOp
	Value  interface{}
	Values []interface{}
}

var fieldPathRegex = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// ValidFilterField reports whether a metadata field path is safe to embed
// into a JSON path expression.
func ValidFilterField(field string) bool {
	return fieldPathRegex.MatchString(field)
}

var operatorKeys = map[string]FilterOp{
	"$eq":       OpEq,
	"$ne":       OpNe,
	"$gt":       OpGt,
	"$gte":      OpGte,
	"$lt":       OpLt,
	"$lte":      OpLte,
	"$in":       OpIn,
	"$contains": OpContains,
}

// ParseFilters turns the loose JSON predicate object into the tagged
// operator form. Fields are visited in sorted order so compiled queries are
// deterministic.
func ParseFilters(raw map[string]interface{}) []Filter {
	if len(raw) == 0 {
		return nil
	}
	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var filters []Filter
	for _, field := range fields {
		value := raw[field]
		ops, ok := value.(map[string]interface{})
		if !ok {
			filters = append(filters, Filter{Field: field, Op: OpEq, Value: value})
			continue
		}
		keys := make([]string, 0, len(ops))
		for key := range ops {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			op, known := operatorKeys[key]
			if !known {
				continue
			}
			operand := ops[key]
			switch op {
			case OpIn, OpContains:
				filters = append(filters, Filter{Field: field, Op: op, Values: toSlice(operand)})
			default:
				filters = append(filters, Filter{Field: field, Op: op, Value: operand})
			}
		}
	}
	return filters
}

func toSlice(value interface{}) []interface{} {
	if values, ok := value.([]interface{}); ok {
		return values
	}
	return []interface{}{value}
}
