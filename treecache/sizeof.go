// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package treecache

import (
	"encoding/json"
	"time"
)

// ValueSize estimates the in-memory footprint of a cached value in bytes:
// strings count two bytes per UTF-16 code unit, byte slices their length,
// numbers and times eight bytes, and everything else twice its
// JSON-serialized length. The estimate only has to be stable and roughly
// proportional; it feeds admission decisions and the currentSize counter.
func ValueSize(value interface{}) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return 2 * utf16Length(v)
	case []byte:
		return int64(len(v))
	case bool:
		return 4
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return 8
	case time.Time:
		return 8
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return 0
		}
		return 2 * int64(len(encoded))
	}
}

// utf16Length returns the number of UTF-16 code units needed to encode s.
// Runes outside the basic multilingual plane take a surrogate pair.
func utf16Length(s string) (units int64) {
	for _, r := range s {
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return units
}
