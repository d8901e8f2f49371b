package repository

import (
	"fmt"
	"strings"

	"ecos/internal/pkg/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
	JoinOuter JoinKind = "outer"
)

func (k JoinKind) sql() (string, bool) {
	switch k {
	case JoinInner, "":
		return "INNER JOIN", true
	case JoinLeft:
		return "LEFT JOIN", true
	case JoinOuter:
		return "FULL OUTER JOIN", true
	}
	return "", false
}

// Filter constrains Field ("column" or "relation.column") to one of Values.
// Partial switches text columns to case-insensitive substring matching.
type Filter struct {
	Field   string
	Values  []any
	Partial bool
}

type Join struct {
	Relation string
	Kind     JoinKind
}

type Order struct {
	Field string
	Desc  bool
}

// Query is the caller-facing description of a read. It is validated and
// compiled into a Spec against one entity type.
type Query struct {
	Filters []Filter
	Joins   []Join
	Preload []string
	OrderBy []Order
	Limit   int
	Offset  int
}

func Eq(field string, values ...any) Filter {
	return Filter{Field: field, Values: values}
}

func Like(field string, values ...any) Filter {
	return Filter{Field: field, Values: values, Partial: true}
}

func (q Query) Where(f ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), f...)
	return q
}

func (q Query) With(relations ...string) Query {
	q.Preload = append(append([]string(nil), q.Preload...), relations...)
	return q
}

// Spec is a validated Query bound to one entity.
type Spec struct {
	entity  *EntityInfo
	joins   []string
	where   []clause.Expression
	order   []clause.OrderByColumn
	preload []string
	limit   int
	offset  int
	toMany  bool
}

// NewSpec validates q against the registered entity of model. Unknown fields,
// unknown relations, dotted fields without a declared join and values that do
// not coerce to the column kind are InvalidFilter errors.
func NewSpec(reg *Registry, model any, q Query) (*Spec, error) {
	entity, err := reg.Lookup(model)
	if err != nil {
		return nil, err
	}
	return compile(reg.db, entity, q)
}

func compile(db *gorm.DB, entity *EntityInfo, q Query) (*Spec, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, apperr.InvalidFilter("limit and offset must not be negative")
	}
	s := &Spec{entity: entity, limit: q.Limit, offset: q.Offset}
	quote := db.Statement.Quote

	joined := make(map[string]*Relation, len(q.Joins))
	for _, j := range q.Joins {
		rel, ok := entity.Relations[j.Relation]
		if !ok {
			return nil, apperr.InvalidFilter("unknown relation %q on %s", j.Relation, entity.Label)
		}
		kind, ok := j.Kind.sql()
		if !ok {
			return nil, apperr.InvalidFilter("unknown join kind %q", j.Kind)
		}
		if _, dup := joined[rel.Name]; dup {
			continue
		}
		joined[rel.Name] = rel
		s.joins = append(s.joins, joinSQL(quote, entity, rel, kind)...)
		s.toMany = s.toMany || rel.ToMany
	}

	for _, f := range q.Filters {
		col, field, _, err := resolve(entity, joined, f.Field)
		if err != nil {
			return nil, err
		}
		if len(f.Values) == 0 {
			return nil, apperr.InvalidFilter("filter on %s has no value", f.Field)
		}
		vals := make([]any, 0, len(f.Values))
		for _, raw := range f.Values {
			v, err := field.Coerce(raw)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		switch {
		case f.Partial:
			if field.Kind != KindText {
				return nil, apperr.InvalidFilter("partial matching is only supported on text fields, %s is %s", f.Field, field.Kind)
			}
			likes := make([]clause.Expression, 0, len(vals))
			for _, v := range vals {
				likes = append(likes, clause.Expr{
					SQL:  "LOWER(?) LIKE ? ESCAPE '\\'",
					Vars: []any{col, "%" + escapeLike(strings.ToLower(v.(string))) + "%"},
				})
			}
			if len(likes) == 1 {
				s.where = append(s.where, likes[0])
			} else {
				s.where = append(s.where, clause.Or(likes...))
			}
		case len(vals) == 1:
			s.where = append(s.where, clause.Eq{Column: col, Value: vals[0]})
		default:
			s.where = append(s.where, clause.IN{Column: col, Values: vals})
		}
	}

	for _, o := range q.OrderBy {
		col, _, rel, err := resolve(entity, joined, o.Field)
		if err != nil {
			return nil, err
		}
		if rel != nil && rel.ToMany {
			return nil, apperr.InvalidFilter("cannot order by %s: %s is a to-many relation", o.Field, rel.Name)
		}
		s.order = append(s.order, clause.OrderByColumn{Column: col, Desc: o.Desc})
	}

	for _, path := range q.Preload {
		goPath, err := preloadPath(entity, path)
		if err != nil {
			return nil, err
		}
		s.preload = append(s.preload, goPath)
	}
	return s, nil
}

// resolve maps "column" or "relation.column" to a qualified column.
func resolve(entity *EntityInfo, joined map[string]*Relation, name string) (clause.Column, Field, *Relation, error) {
	relName, column, dotted := strings.Cut(name, ".")
	if !dotted {
		f, ok := entity.Field(name)
		if !ok {
			return clause.Column{}, Field{}, nil, apperr.InvalidFilter("unknown field %q on %s", name, entity.Label)
		}
		return clause.Column{Table: entity.Table, Name: f.Column}, f, nil, nil
	}
	rel, ok := joined[relName]
	if !ok {
		if _, known := entity.Relations[relName]; known {
			return clause.Column{}, Field{}, nil, apperr.InvalidFilter("field %q needs a join on %s", name, relName)
		}
		return clause.Column{}, Field{}, nil, apperr.InvalidFilter("unknown relation %q on %s", relName, entity.Label)
	}
	f, ok := rel.Target.Field(column)
	if !ok {
		return clause.Column{}, Field{}, nil, apperr.InvalidFilter("unknown field %q on %s", column, rel.Target.Label)
	}
	return clause.Column{Table: rel.Name, Name: f.Column}, f, rel, nil
}

func preloadPath(entity *EntityInfo, path string) (string, error) {
	cur := entity
	parts := strings.Split(path, ".")
	goParts := make([]string, 0, len(parts))
	for _, p := range parts {
		rel, ok := cur.Relations[p]
		if !ok {
			return "", apperr.InvalidFilter("unknown relation %q on %s", p, cur.Label)
		}
		goParts = append(goParts, rel.GoName)
		cur = rel.Target
	}
	return strings.Join(goParts, "."), nil
}

// joinSQL renders the JOIN clauses for rel aliased by its relation name.
// Many-to-many relations go through their join table.
func joinSQL(quote func(any) string, base *EntityInfo, rel *Relation, kind string) []string {
	r := rel.rel
	alias := rel.Name
	on := func(leftTable, leftCol, rightTable, rightCol string) string {
		return fmt.Sprintf("%s.%s = %s.%s", quote(leftTable), quote(leftCol), quote(rightTable), quote(rightCol))
	}

	if r.Type == schema.Many2Many && r.JoinTable != nil {
		jt := alias + "__link"
		var toLink, toTarget []string
		for _, ref := range r.References {
			if ref.OwnPrimaryKey {
				toLink = append(toLink, on(jt, ref.ForeignKey.DBName, base.Table, ref.PrimaryKey.DBName))
			} else {
				toTarget = append(toTarget, on(alias, ref.PrimaryKey.DBName, jt, ref.ForeignKey.DBName))
			}
		}
		return []string{
			fmt.Sprintf("%s %s %s ON %s", kind, quote(r.JoinTable.Table), quote(jt), strings.Join(toLink, " AND ")),
			fmt.Sprintf("%s %s %s ON %s", kind, quote(rel.Target.Table), quote(alias), strings.Join(toTarget, " AND ")),
		}
	}

	conds := make([]string, 0, len(r.References))
	for _, ref := range r.References {
		if ref.ForeignKey == nil || ref.PrimaryKey == nil {
			continue
		}
		if ref.OwnPrimaryKey {
			// has one / has many: the foreign key lives on the joined table.
			conds = append(conds, on(alias, ref.ForeignKey.DBName, base.Table, ref.PrimaryKey.DBName))
		} else {
			// belongs to: the foreign key lives on the base table.
			conds = append(conds, on(alias, ref.PrimaryKey.DBName, base.Table, ref.ForeignKey.DBName))
		}
	}
	return []string{fmt.Sprintf("%s %s %s ON %s", kind, quote(rel.Target.Table), quote(alias), strings.Join(conds, " AND "))}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// scope applies joins and conditions. Used for both reads and counts.
func (s *Spec) scope(tx *gorm.DB) *gorm.DB {
	for _, j := range s.joins {
		tx = tx.Joins(j)
	}
	if len(s.where) > 0 {
		tx = tx.Where(clause.And(s.where...))
	}
	return tx
}

// Apply adds the whole spec (joins, conditions, eager loads, order, paging) to tx.
func (s *Spec) Apply(tx *gorm.DB) *gorm.DB {
	tx = s.scope(tx)
	if s.toMany {
		tx = tx.Distinct(s.entity.Table + ".*")
	}
	for _, p := range s.preload {
		tx = tx.Preload(p)
	}
	if len(s.order) > 0 {
		tx = tx.Order(clause.OrderBy{Columns: s.order})
	}
	if s.limit > 0 {
		tx = tx.Limit(s.limit)
	}
	if s.offset > 0 {
		tx = tx.Offset(s.offset)
	}
	return tx
}

// Count counts matching rows, ignoring paging and order.
func (s *Spec) Count(tx *gorm.DB) (int64, error) {
	tx = s.scope(tx)
	if s.toMany {
		tx = tx.Distinct(s.entity.Table + "." + s.entity.PrimaryKey)
	}
	var n int64
	err := tx.Count(&n).Error
	return n, err
}
