/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package predicate

import (
	"errors"
	"fmt"
	"strings"
)

// IDField is the stored name of the identity field.
const IDField = "_id"

var ErrInvalidPredicate = errors.New("invalid predicate")

// Predicate is an immutable boolean condition over document fields. Values
// are built with the constructors in this package and translated into a
// native filter by the store adapter; they are never evaluated in memory.
//
// The zero Predicate is invalid. Use All to match every document.
type Predicate struct {
	op       Operator
	field    string
	value    interface{}
	options  string
	children []Predicate
}

// All matches every document.
func All() Predicate { return Predicate{op: OpAll} }

// ID matches the document whose identity equals id.
func ID(id string) Predicate { return Eq(IDField, id) }

func Eq(field string, value interface{}) Predicate  { return compare(OpEq, field, value) }
func Ne(field string, value interface{}) Predicate  { return compare(OpNe, field, value) }
func Gt(field string, value interface{}) Predicate  { return compare(OpGt, field, value) }
func Gte(field string, value interface{}) Predicate { return compare(OpGte, field, value) }
func Lt(field string, value interface{}) Predicate  { return compare(OpLt, field, value) }
func Lte(field string, value interface{}) Predicate { return compare(OpLte, field, value) }

// In matches documents whose field equals any of values.
func In(field string, values ...interface{}) Predicate {
	return compare(OpIn, field, append([]interface{}(nil), values...))
}

// Nin matches documents whose field equals none of values.
func Nin(field string, values ...interface{}) Predicate {
	return compare(OpNin, field, append([]interface{}(nil), values...))
}

// Exists matches on the presence (or absence) of field.
func Exists(field string, exists bool) Predicate { return compare(OpExists, field, exists) }

// Regex matches string fields against pattern. options uses the store's
// regex flags ("i", "m", "x", "s").
func Regex(field, pattern, options string) Predicate {
	p := compare(OpRegex, field, pattern)
	p.options = options
	return p
}

func And(ps ...Predicate) Predicate { return logical(OpAnd, ps) }
func Or(ps ...Predicate) Predicate  { return logical(OpOr, ps) }
func Nor(ps ...Predicate) Predicate { return logical(OpNor, ps) }

// Not negates p.
func Not(p Predicate) Predicate { return Predicate{op: OpNot, children: []Predicate{p}} }

// And returns p AND others. Nested ANDs are flattened.
func (p Predicate) And(others ...Predicate) Predicate {
	return And(append([]Predicate{p}, others...)...)
}

// Or returns p OR others. Nested ORs are flattened.
func (p Predicate) Or(others ...Predicate) Predicate {
	return Or(append([]Predicate{p}, others...)...)
}

func compare(op Operator, field string, value interface{}) Predicate {
	return Predicate{op: op, field: strings.TrimSpace(field), value: value}
}

func logical(op Operator, ps []Predicate) Predicate {
	children := make([]Predicate, 0, len(ps))
	for _, c := range ps {
		// and/or are associative; nor is not.
		if c.op == op && op != OpNor {
			children = append(children, c.children...)
			continue
		}
		children = append(children, c)
	}
	return Predicate{op: op, children: children}
}

func (p Predicate) Op() Operator       { return p.op }
func (p Predicate) Field() string      { return p.field }
func (p Predicate) Value() interface{} { return p.value }
func (p Predicate) Options() string    { return p.options }
func (p Predicate) IsZero() bool       { return p.op == OpInvalid }
func (p Predicate) Children() []Predicate {
	return append([]Predicate(nil), p.children...)
}

// IsIDMatch reports whether p is an identity equality and returns the id.
func (p Predicate) IsIDMatch() (string, bool) {
	if p.op != OpEq || p.field != IDField {
		return "", false
	}
	id, ok := p.value.(string)
	return id, ok
}

// Validate checks the whole tree.
func (p Predicate) Validate() error {
	switch {
	case p.op == OpAll:
		return nil
	case p.op.IsComparison():
		if p.field == "" {
			return fmt.Errorf("%w: %s requires a field", ErrInvalidPredicate, p.op)
		}
		if p.op == OpExists {
			if _, ok := p.value.(bool); !ok {
				return fmt.Errorf("%w: exists on %q requires a bool", ErrInvalidPredicate, p.field)
			}
		}
		if p.op == OpRegex {
			if s, ok := p.value.(string); !ok || s == "" {
				return fmt.Errorf("%w: regex on %q requires a pattern", ErrInvalidPredicate, p.field)
			}
		}
		return nil
	case p.op.IsLogical():
		if len(p.children) == 0 {
			return fmt.Errorf("%w: %s requires at least one child", ErrInvalidPredicate, p.op)
		}
		for _, c := range p.children {
			if err := c.Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operator %d", ErrInvalidPredicate, int(p.op))
	}
}

// String renders p for logs, e.g. `and(eq(name, "a"), gt(age, 3))`.
func (p Predicate) String() string {
	switch {
	case p.op == OpAll:
		return "all()"
	case p.op.IsComparison():
		if p.op == OpRegex {
			return fmt.Sprintf("regex(%s, %q, %q)", p.field, p.value, p.options)
		}
		return fmt.Sprintf("%s(%s, %#v)", p.op, p.field, p.value)
	case p.op.IsLogical():
		parts := make([]string, len(p.children))
		for i, c := range p.children {
			parts[i] = c.String()
		}
		return fmt.Sprintf("%s(%s)", p.op, strings.Join(parts, ", "))
	default:
		return "invalid()"
	}
}
