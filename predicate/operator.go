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

// Operator identifies the kind of a predicate node.
type Operator int

const (
	OpInvalid Operator = iota
	OpAll
	OpEq
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
	OpExists
	OpRegex
	OpAnd
	OpOr
	OpNor
	OpNot
)

var operatorNames = map[Operator]string{
	OpAll:    "all",
	OpEq:     "eq",
	OpNe:     "ne",
	OpGt:     "gt",
	OpGte:    "gte",
	OpLt:     "lt",
	OpLte:    "lte",
	OpIn:     "in",
	OpNin:    "nin",
	OpExists: "exists",
	OpRegex:  "regex",
	OpAnd:    "and",
	OpOr:     "or",
	OpNor:    "nor",
	OpNot:    "not",
}

var operatorDescs = map[Operator]string{
	OpAll:    "matches every document",
	OpEq:     "field equals value",
	OpNe:     "field does not equal value",
	OpGt:     "field greater than value",
	OpGte:    "field greater than or equal to value",
	OpLt:     "field less than value",
	OpLte:    "field less than or equal to value",
	OpIn:     "field equals one of values",
	OpNin:    "field equals none of values",
	OpExists: "field presence",
	OpRegex:  "field matches pattern",
	OpAnd:    "all children match",
	OpOr:     "any child matches",
	OpNor:    "no child matches",
	OpNot:    "child does not match",
}

// Operators lists every valid operator.
func Operators() []Operator {
	return []Operator{OpAll, OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpExists, OpRegex, OpAnd, OpOr, OpNor, OpNot}
}

func (o Operator) IsValid() bool {
	_, ok := operatorNames[o]
	return ok
}

func (o Operator) Number() int {
	if !o.IsValid() {
		return -1
	}
	return int(o)
}

func (o Operator) Name() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "unknown"
}

func (o Operator) String() string { return o.Name() }

func (o Operator) Desc() string {
	if desc, ok := operatorDescs[o]; ok {
		return desc
	}
	return "unknown"
}

// IsComparison reports whether the operator compares a single field.
func (o Operator) IsComparison() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpExists, OpRegex:
		return true
	}
	return false
}

// IsLogical reports whether the operator combines child predicates.
func (o Operator) IsLogical() bool {
	switch o {
	case OpAnd, OpOr, OpNor, OpNot:
		return true
	}
	return false
}
