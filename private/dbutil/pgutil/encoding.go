// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pgutil

import (
	"github.com/jackc/pgtype"
)

// Int8Array returns an object usable by pg drivers for passing a []int64
// slice into a database as type INT8[].
func Int8Array(ints []int64) *pgtype.Int8Array {
	elements := make([]pgtype.Int8, len(ints))
	for i, v := range ints {
		elements[i].Int = v
		elements[i].Status = pgtype.Present
	}
	return &pgtype.Int8Array{
		Elements:   elements,
		Dimensions: []pgtype.ArrayDimension{{Length: int32(len(ints)), LowerBound: 1}},
		Status:     pgtype.Present,
	}
}

// TextArray returns an object usable by pg drivers for passing a []string
// slice into a database as type TEXT[].
func TextArray(strings []string) *pgtype.TextArray {
	elements := make([]pgtype.Text, len(strings))
	for i, v := range strings {
		elements[i].String = v
		elements[i].Status = pgtype.Present
	}
	return &pgtype.TextArray{
		Elements:   elements,
		Dimensions: []pgtype.ArrayDimension{{Length: int32(len(strings)), LowerBound: 1}},
		Status:     pgtype.Present,
	}
}
