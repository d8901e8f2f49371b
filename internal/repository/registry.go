package repository

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"ecos/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FieldKind is the value type a filter on a column is coerced to.
type FieldKind int

const (
	KindText FieldKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindUUID
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "timestamp"
	case KindUUID:
		return "uuid"
	}
	return "unknown"
}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	timeType = reflect.TypeOf(time.Time{})
)

// Field is one filterable column.
type Field struct {
	Column string
	Kind   FieldKind
}

// Coerce converts a filter value to the column's kind. Strings are parsed;
// values that already have the right Go type pass through.
func (f Field) Coerce(v any) (any, error) {
	switch f.Kind {
	case KindText:
		switch t := v.(type) {
		case string:
			return t, nil
		case fmt.Stringer:
			return t.String(), nil
		}
		return fmt.Sprint(v), nil
	case KindUUID:
		switch t := v.(type) {
		case uuid.UUID:
			return t, nil
		case string:
			id, err := uuid.Parse(strings.TrimSpace(t))
			if err != nil {
				return nil, f.invalid(v)
			}
			return id, nil
		}
	case KindInt:
		switch t := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return t, nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, f.invalid(v)
			}
			return n, nil
		}
	case KindFloat:
		switch t := v.(type) {
		case float32, float64, int, int64:
			return t, nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, f.invalid(v)
			}
			return n, nil
		}
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return nil, f.invalid(v)
			}
			return b, nil
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			s := strings.TrimSpace(t)
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
				if ts, err := time.Parse(layout, s); err == nil {
					return ts, nil
				}
			}
			return nil, f.invalid(v)
		}
	}
	return nil, f.invalid(v)
}

func (f Field) invalid(v any) error {
	return apperr.InvalidFilter("value %q is not a valid %s for %s", fmt.Sprint(v), f.Kind, f.Column)
}

// Relation is a navigable association, keyed by its snake_case name.
type Relation struct {
	Name   string
	GoName string
	Target *EntityInfo
	ToMany bool
	rel    *schema.Relationship
}

// EntityInfo is everything the query builder needs to know about one model.
type EntityInfo struct {
	Table      string
	PrimaryKey string
	Label      string
	Fields     map[string]Field
	Relations  map[string]*Relation
	schema     *schema.Schema
}

func (e *EntityInfo) Field(name string) (Field, bool) {
	f, ok := e.Fields[name]
	return f, ok
}

// Registry holds EntityInfo for every model, built once at startup from
// gorm's parsed schema so per-query validation is map lookups only.
type Registry struct {
	db       *gorm.DB
	entities map[reflect.Type]*EntityInfo
}

func NewRegistry(db *gorm.DB, models ...any) (*Registry, error) {
	r := &Registry{db: db, entities: make(map[reflect.Type]*EntityInfo, len(models))}
	for _, m := range models {
		if _, err := r.register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Lookup returns the info for model (a pointer or value of a registered type).
func (r *Registry) Lookup(model any) (*EntityInfo, error) {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	info, ok := r.entities[t]
	if !ok {
		return nil, fmt.Errorf("repository: %s is not a registered entity", t.Name())
	}
	return info, nil
}

func (r *Registry) register(model any) (*EntityInfo, error) {
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("parse %T: %w", model, err)
	}
	return r.fromSchema(stmt.Schema), nil
}

func (r *Registry) fromSchema(sch *schema.Schema) *EntityInfo {
	if info, ok := r.entities[sch.ModelType]; ok {
		return info
	}
	info := &EntityInfo{
		Table:     sch.Table,
		Label:     strings.ReplaceAll(r.db.NamingStrategy.ColumnName("", sch.Name), "_", " "),
		Fields:    make(map[string]Field, len(sch.DBNames)),
		Relations: make(map[string]*Relation, len(sch.Relationships.Relations)),
		schema:    sch,
	}
	if sch.PrioritizedPrimaryField != nil {
		info.PrimaryKey = sch.PrioritizedPrimaryField.DBName
	}
	// Registered before relations are walked so cycles resolve to this entry.
	r.entities[sch.ModelType] = info

	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		info.Fields[f.DBName] = Field{Column: f.DBName, Kind: kindOf(f.IndirectFieldType)}
	}
	for goName, rel := range sch.Relationships.Relations {
		name := r.db.NamingStrategy.ColumnName("", goName)
		info.Relations[name] = &Relation{
			Name:   name,
			GoName: goName,
			Target: r.fromSchema(rel.FieldSchema),
			ToMany: rel.Type == schema.HasMany || rel.Type == schema.Many2Many,
			rel:    rel,
		}
	}
	return info
}

func kindOf(t reflect.Type) FieldKind {
	switch {
	case t == uuidType:
		return KindUUID
	case t == timeType:
		return KindTime
	}
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	}
	return KindText
}
