package database

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/asdine/storm/v3/q"
	"github.com/mdouchement/zotero/internal/model"
	"github.com/pkg/errors"
	"github.com/xwb1989/sqlparser"
)

// A Selection is a SELECT statement translated to a storm query.
type Selection struct {
	Table    string
	Count    bool
	Matcher  q.Matcher
	Skip     int
	Limit    int
	OrderBy  []string
	Reversed bool
}

// tables returns an empty record and an empty record list of each table.
var tables = map[string]func() (any, any){
	"libraries": func() (any, any) { return &model.Library{}, &[]*model.Library{} },
	"objects":   func() (any, any) { return &model.Object{}, &[]*model.Object{} },
	"files":     func() (any, any) { return &model.File{}, &[]*model.File{} },
	"uploads":   func() (any, any) { return &model.Upload{}, &[]*model.Upload{} },
}

// ParseSelect parses a SELECT statement on the libraries, objects, files or uploads table.
// Columns are the Go field names of the records (e.g. Library, Kind, Version, CreatedAt),
// reserved words like Key must be quoted with backticks.
//
//	SELECT count(*) FROM objects WHERE Library = 'users/475425' AND Kind = 'item'
//	SELECT * FROM objects WHERE `Key` IN ('ABCD2345', 'EFGH6789') ORDER BY Version DESC LIMIT 10
func ParseSelect(sql string) (*Selection, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse SQL")
	}

	s, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, errors.New("not a select statement")
	}

	var sel Selection

	// SELECT *
	// SELECT count(*)
	for _, se := range s.SelectExprs {
		switch v := se.(type) {
		case *sqlparser.StarExpr:
		case *sqlparser.AliasedExpr:
			f, ok := v.Expr.(*sqlparser.FuncExpr)
			if !ok || !f.Name.EqualString("count") {
				return nil, errors.New("only * and count(*) can be selected")
			}
			sel.Count = true
		default:
			return nil, errors.New("unsupported select expression")
		}
	}

	// FROM objects
	if len(s.From) != 1 {
		return nil, errors.New("exactly one table must be selected")
	}
	from, ok := s.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, errors.New("joins are not supported")
	}
	sel.Table = sqlparser.GetTableName(from.Expr).String()
	if _, ok := tables[sel.Table]; !ok {
		return nil, errors.Errorf("unknown table %q", sel.Table)
	}

	// WHERE
	sel.Matcher = q.And()
	if s.Where != nil {
		if sel.Matcher, err = where(s.Where.Expr); err != nil {
			return nil, err
		}
	}

	// LIMIT 5
	// LIMIT 2,5
	if s.Limit != nil {
		if s.Limit.Offset != nil {
			if sel.Skip, err = integer(s.Limit.Offset); err != nil {
				return nil, errors.Wrap(err, "offset")
			}
		}
		if sel.Limit, err = integer(s.Limit.Rowcount); err != nil {
			return nil, errors.Wrap(err, "limit")
		}
	}

	// ORDER BY Version DESC
	// Storm sorts every field in the same direction, any DESC reverses them all.
	for _, ob := range s.OrderBy {
		col, ok := ob.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, errors.New("only columns can be ordered")
		}
		if ob.Direction == sqlparser.DescScr {
			sel.Reversed = true
		}
		sel.OrderBy = append(sel.OrderBy, col.Name.String())
	}

	return &sel, nil
}

func where(expr sqlparser.Expr) (q.Matcher, error) {
	switch v := expr.(type) {
	case *sqlparser.ComparisonExpr:
		col, ok := v.Left.(*sqlparser.ColName)
		if !ok {
			return nil, errors.New("the left side of a comparison must be a column")
		}
		field := col.Name.String()

		value, err := operand(field, v.Right)
		if err != nil {
			return nil, err
		}

		switch v.Operator {
		case sqlparser.EqualStr:
			return q.Eq(field, value), nil
		case sqlparser.NotEqualStr:
			return q.Not(q.Eq(field, value)), nil
		case sqlparser.GreaterThanStr:
			return q.Gt(field, value), nil
		case sqlparser.GreaterEqualStr:
			return q.Gte(field, value), nil
		case sqlparser.LessThanStr:
			return q.Lt(field, value), nil
		case sqlparser.LessEqualStr:
			return q.Lte(field, value), nil
		case sqlparser.InStr:
			return q.In(field, value), nil
		case sqlparser.NotInStr:
			return q.Not(q.In(field, value)), nil
		case sqlparser.LikeStr, sqlparser.NotLikeStr:
			pattern, ok := value.(string)
			if !ok {
				return nil, errors.Errorf("%s expects a string", v.Operator)
			}
			m := q.Re(field, like(pattern))
			if v.Operator == sqlparser.NotLikeStr {
				m = q.Not(m)
			}
			return m, nil
		case sqlparser.RegexpStr:
			pattern, ok := value.(string)
			if !ok {
				return nil, errors.New("regexp expects a string")
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, errors.Wrap(err, "invalid regexp")
			}
			return q.Re(field, pattern), nil
		default:
			return nil, errors.Errorf("unsupported operator %q", v.Operator)
		}
	case *sqlparser.IsExpr:
		col, ok := v.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, errors.New("IS expects a column")
		}

		switch v.Operator {
		case sqlparser.IsNullStr:
			return q.Eq(col.Name.String(), nil), nil
		case sqlparser.IsNotNullStr:
			return q.Not(q.Eq(col.Name.String(), nil)), nil
		default:
			return nil, errors.Errorf("unsupported operator %q", v.Operator)
		}
	case *sqlparser.AndExpr:
		return binary(q.And, v.Left, v.Right)
	case *sqlparser.OrExpr:
		return binary(q.Or, v.Left, v.Right)
	case *sqlparser.NotExpr:
		m, err := where(v.Expr)
		if err != nil {
			return nil, err
		}
		return q.Not(m), nil
	case *sqlparser.ParenExpr:
		return where(v.Expr)
	default:
		return nil, errors.Errorf("unsupported expression %s", sqlparser.String(expr))
	}
}

func binary(op func(...q.Matcher) q.Matcher, left, right sqlparser.Expr) (q.Matcher, error) {
	l, err := where(left)
	if err != nil {
		return nil, err
	}
	r, err := where(right)
	if err != nil {
		return nil, err
	}
	return op(l, r), nil
}

// operand returns the Go value compared to field.
func operand(field string, expr sqlparser.Expr) (any, error) {
	switch v := expr.(type) {
	case sqlparser.BoolVal:
		return bool(v), nil
	case *sqlparser.NullVal:
		return nil, nil
	case sqlparser.ValTuple:
		tuple := make([]any, 0, len(v))
		for _, e := range v {
			value, err := operand(field, e)
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, value)
		}
		return tuple, nil
	case *sqlparser.SQLVal:
		return value(field, v)
	default:
		return nil, errors.Errorf("unsupported value %s", sqlparser.String(expr))
	}
}

func value(field string, v *sqlparser.SQLVal) (any, error) {
	switch v.Type {
	case sqlparser.StrVal:
		s := string(v.Val)
		if !strings.HasSuffix(field, "At") {
			return s, nil
		}

		// CreatedAt and UpdatedAt
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid date for %s", field)
		}
		return t.UTC(), nil
	case sqlparser.IntVal:
		return strconv.Atoi(string(v.Val))
	case sqlparser.FloatVal:
		return strconv.ParseFloat(string(v.Val), 64)
	case sqlparser.HexNum:
		return strconv.ParseInt(string(v.Val[2:]), 16, 64)
	case sqlparser.HexVal:
		return v.HexDecode()
	case sqlparser.BitVal:
		return len(v.Val) > 0 && v.Val[0] == '1', nil
	default:
		return nil, errors.New("placeholders are not supported")
	}
}

func integer(expr sqlparser.Expr) (int, error) {
	v, ok := expr.(*sqlparser.SQLVal)
	if !ok || v.Type != sqlparser.IntVal {
		return 0, errors.New("integer expected")
	}
	return strconv.Atoi(string(v.Val))
}

// like converts a LIKE pattern to an anchored regular expression.
func like(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
