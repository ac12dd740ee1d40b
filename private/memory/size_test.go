// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storj.io/webpods/private/memory"
)

func TestSizeString(t *testing.T) {
	var tests = []struct {
		size memory.Size
		text string
	}{
		{0, "0"},
		{1, "1 B"},
		{1023, "1023 B"},
		{memory.KiB, "1.0 KiB"},
		{10 * memory.KiB, "10.0 KiB"},
		{memory.MiB, "1.0 MiB"},
		{memory.GiB, "1.0 GiB"},
		{memory.KB, "1.00 KB"},
		{100 * memory.MB, "100.00 MB"},
	}

	for _, test := range tests {
		assert.Equal(t, test.text, test.size.String())
	}
}

func TestSizeParse(t *testing.T) {
	var tests = []struct {
		text string
		size memory.Size
	}{
		{"0", 0},
		{"1", 1},
		{"100", 100},
		{"3 B", 3},
		{"10 KiB", 10 * memory.KiB},
		{"10KiB", 10 * memory.KiB},
		{"10kib", 10 * memory.KiB},
		{"1.5 MiB", memory.Size(1.5 * float64(memory.MiB))},
		{"1 GB", memory.GB},
		{"2TB", 2 * memory.TB},
	}

	for _, test := range tests {
		var size memory.Size
		require.NoError(t, size.Set(test.text), test.text)
		assert.Equal(t, test.size, size, test.text)
	}

	for _, invalid := range []string{"", "banana", "1..0KiB", "1 XB"} {
		var size memory.Size
		assert.Error(t, size.Set(invalid), invalid)
	}
}
