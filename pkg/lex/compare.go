package lex

import (
	"strconv"
	"strings"
)

// numericValue returns the number a literal stands for when it is a number or
// a numeric string
func numericValue(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		if !isNumeric(v.s) {
			return 0, false
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// looseEqual compares two literals the way a weakly typed template language
// does: booleans and null by truthiness, numeric strings as numbers, anything
// else by string form.
func looseEqual(a, b Value) bool {
	return looseCompare(a, b) == 0
}

// looseCompare orders two literals and returns -1, 0 or 1
func looseCompare(a, b Value) int {
	switch {
	case a.kind == KindNull && b.kind == KindNull:
		return 0
	case a.kind == KindBool || b.kind == KindBool:
		return compareBool(a.Truthy(), b.Truthy())
	case a.kind == KindNull && b.kind == KindString:
		return strings.Compare("", b.s)
	case a.kind == KindString && b.kind == KindNull:
		return strings.Compare(a.s, "")
	case a.kind == KindNull || b.kind == KindNull:
		return compareBool(a.Truthy(), b.Truthy())
	}

	an, aok := numericValue(a)
	bn, bok := numericValue(b)
	if aok && bok {
		return compareFloat(an, bn)
	}
	return strings.Compare(a.String(), b.String())
}

// strictEqual requires the same kind and the same value
func strictEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	return a.Equal(b)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
