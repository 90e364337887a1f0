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

package repository

import (
	"fmt"

	"github.com/tomoncle/mongorepo/predicate"
	"go.mongodb.org/mongo-driver/bson"
)

var comparisonOperators = map[predicate.Operator]string{
	predicate.OpEq:     "$eq",
	predicate.OpNe:     "$ne",
	predicate.OpGt:     "$gt",
	predicate.OpGte:    "$gte",
	predicate.OpLt:     "$lt",
	predicate.OpLte:    "$lte",
	predicate.OpIn:     "$in",
	predicate.OpNin:    "$nin",
	predicate.OpExists: "$exists",
}

var logicalOperators = map[predicate.Operator]string{
	predicate.OpAnd: "$and",
	predicate.OpOr:  "$or",
	predicate.OpNor: "$nor",
	predicate.OpNot: "$nor",
}

// Filter validates p and translates it into a query filter document.
// All becomes the empty filter; Not(p) becomes {$nor: [p]}.
func Filter(p predicate.Predicate) (bson.D, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return toFilter(p)
}

func toFilter(p predicate.Predicate) (bson.D, error) {
	switch op := p.Op(); {
	case op == predicate.OpAll:
		return bson.D{}, nil
	case op == predicate.OpRegex:
		cond := bson.D{{Key: "$regex", Value: p.Value()}}
		if p.Options() != "" {
			cond = append(cond, bson.E{Key: "$options", Value: p.Options()})
		}
		return bson.D{{Key: p.Field(), Value: cond}}, nil
	case op == predicate.OpIn || op == predicate.OpNin:
		values, _ := p.Value().([]interface{})
		list := append(bson.A{}, values...)
		return bson.D{{Key: p.Field(), Value: bson.D{{Key: comparisonOperators[op], Value: list}}}}, nil
	case op.IsComparison():
		return bson.D{{Key: p.Field(), Value: bson.D{{Key: comparisonOperators[op], Value: p.Value()}}}}, nil
	case op.IsLogical():
		children := p.Children()
		clauses := make(bson.A, 0, len(children))
		for _, c := range children {
			f, err := toFilter(c)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, f)
		}
		return bson.D{{Key: logicalOperators[op], Value: clauses}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator %s", predicate.ErrInvalidPredicate, op)
	}
}
