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

package types

import (
	"fmt"
	"strings"
)

// Order is a single sort key.
type Order struct {
	Field string
	Desc  bool
}

// ParseOrder parses "field", "field ASC" or "field DESC".
func ParseOrder(s string) (Order, error) {
	parts := strings.Fields(s)
	switch len(parts) {
	case 1:
		return Order{Field: parts[0]}, nil
	case 2:
		switch strings.ToUpper(parts[1]) {
		case "ASC":
			return Order{Field: parts[0]}, nil
		case "DESC":
			return Order{Field: parts[0], Desc: true}, nil
		}
	}
	return Order{}, fmt.Errorf("invalid order expression: %q", s)
}

// ParseOrders parses each expression, keeping their order.
func ParseOrders(exprs ...string) ([]Order, error) {
	orders := make([]Order, 0, len(exprs))
	for _, e := range exprs {
		o, err := ParseOrder(e)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
