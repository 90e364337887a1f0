// Package predicate provides composable, store-evaluable boolean conditions
// over document fields: a field, an operator and a value, combined with
// and/or/nor/not.
package predicate
