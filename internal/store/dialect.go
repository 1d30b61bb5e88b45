package store

import (
	"fmt"
	"strings"

	"github.com/skaldhq/skald/internal/pkg/dbutil"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

// dialect isolates the few places where postgres and sqlite SQL differ:
// placeholder style, JSON metadata path expressions, and boolean literals.
type dialect struct {
	driver string
}

func (d dialect) finalize(query string, args []interface{}) (string, []interface{}) {
	if d.driver == driverPostgres {
		return dbutil.Finalize(query, args)
	}
	return dbutil.FinalizeSQLite(query, args)
}

func (d dialect) boolVal(b bool) interface{} {
	if d.driver == driverPostgres {
		return b
	}
	if b {
		return 1
	}
	return 0
}

// jsonText reads a metadata field as text. The field path is validated
// before being embedded.
func (d dialect) jsonText(column, field string) string {
	if d.driver == driverPostgres {
		return fmt.Sprintf("(%s::jsonb #>> '{%s}')", column, strings.ReplaceAll(field, ".", ","))
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, field)
}

func (d dialect) jsonNumber(column, field string) string {
	if d.driver == driverPostgres {
		return fmt.Sprintf("(%s::jsonb #>> '{%s}')::numeric", column, strings.ReplaceAll(field, ".", ","))
	}
	return fmt.Sprintf("CAST(json_extract(%s, '$.%s') AS NUMERIC)", column, field)
}

// compileFilter turns one parsed filter into a SQL condition with ?
// placeholders against the row's metadata column.
func (d dialect) compileFilter(column string, f Filter) (string, []interface{}, error) {
	if !ValidFilterField(f.Field) {
		return "", nil, fmt.Errorf("%w: filter field %q", appErr.ErrInvalid, f.Field)
	}
	switch f.Op {
	case OpEq:
		return d.jsonText(column, f.Field) + " = ?", []interface{}{stringify(f.Value)}, nil
	case OpNe:
		return d.jsonText(column, f.Field) + " != ?", []interface{}{stringify(f.Value)}, nil
	case OpGt:
		return d.jsonNumber(column, f.Field) + " > ?", []interface{}{f.Value}, nil
	case OpGte:
		return d.jsonNumber(column, f.Field) + " >= ?", []interface{}{f.Value}, nil
	case OpLt:
		return d.jsonNumber(column, f.Field) + " < ?", []interface{}{f.Value}, nil
	case OpLte:
		return d.jsonNumber(column, f.Field) + " <= ?", []interface{}{f.Value}, nil
	case OpIn:
		if len(f.Values) == 0 {
			return "1 = 0", nil, nil
		}
		args := make([]interface{}, 0, len(f.Values))
		for _, v := range f.Values {
			args = append(args, stringify(v))
		}
		return d.jsonText(column, f.Field) + " IN (" + placeholders(len(args)) + ")", args, nil
	case OpContains:
		return d.compileContains(column, f)
	default:
		return "", nil, fmt.Errorf("%w: unknown filter operator", appErr.ErrInvalid)
	}
}

// compileContains tests whether the field's JSON array intersects the given
// set of values.
func (d dialect) compileContains(column string, f Filter) (string, []interface{}, error) {
	if len(f.Values) == 0 {
		return "1 = 0", nil, nil
	}
	args := make([]interface{}, 0, len(f.Values))
	for _, v := range f.Values {
		args = append(args, stringify(v))
	}
	if d.driver == driverPostgres {
		path := strings.ReplaceAll(f.Field, ".", ",")
		cond := fmt.Sprintf("jsonb_exists_any(%s::jsonb #> '{%s}', ARRAY[%s]::text[])",
			column, path, placeholders(len(args)))
		return cond, args, nil
	}
	cond := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s, '$.%s') WHERE json_each.value IN (%s))",
		column, f.Field, placeholders(len(args)))
	return cond, args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringify(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
