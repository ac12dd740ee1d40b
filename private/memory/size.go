// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package memory contains the Size type for counting and configuring byte
// amounts.
package memory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
)

// Size implements flag.Value for collecting memory size in bytes.
type Size int64

// base 2 and base 10 sizes.
const (
	B Size = 1 << (10 * iota)
	KiB
	MiB
	GiB
	TiB

	KB Size = 1e3
	MB Size = 1e6
	GB Size = 1e9
	TB Size = 1e12
)

// Int returns bytes size as int.
func (size Size) Int() int { return int(size) }

// Int64 returns bytes size as int64.
func (size Size) Int64() int64 { return int64(size) }

// Float64 returns bytes size as float64.
func (size Size) Float64() float64 { return float64(size) }

// KiB returns size in kibibytes.
func (size Size) KiB() float64 { return size.Float64() / KiB.Float64() }

// MiB returns size in mebibytes.
func (size Size) MiB() float64 { return size.Float64() / MiB.Float64() }

// GiB returns size in gibibytes.
func (size Size) GiB() float64 { return size.Float64() / GiB.Float64() }

// String converts size to a string using base-2 prefixes, unless the number
// appears to be in base 10.
func (size Size) String() string {
	if size == 0 {
		return "0"
	}

	switch {
	case size >= TB && size%TB == 0:
		return fmt.Sprintf("%d.00 TB", size/TB)
	case size >= GB && size%GB == 0:
		return fmt.Sprintf("%d.00 GB", size/GB)
	case size >= MB && size%MB == 0:
		return fmt.Sprintf("%d.00 MB", size/MB)
	case size >= KB && size%KB == 0 && size < KiB:
		return fmt.Sprintf("%d.00 KB", size/KB)
	case size >= TiB && size%TiB == 0:
		return fmt.Sprintf("%d.0 TiB", size/TiB)
	case size >= GiB && size%GiB == 0:
		return fmt.Sprintf("%d.0 GiB", size/GiB)
	case size >= MiB && size%MiB == 0:
		return fmt.Sprintf("%d.0 MiB", size/MiB)
	case size >= KiB && size%KiB == 0:
		return fmt.Sprintf("%d.0 KiB", size/KiB)
	default:
		return strconv.FormatInt(size.Int64(), 10) + " B"
	}
}

// Set updates value from string.
func (size *Size) Set(s string) error {
	if s == "" {
		return errs.New("empty size")
	}

	p := len(s)
	for p > 0 {
		c := s[p-1]
		if c != 'b' && c != 'B' && c != 'i' && c != 'I' &&
			c != 'k' && c != 'K' && c != 'm' && c != 'M' &&
			c != 'g' && c != 'G' && c != 't' && c != 'T' {
			break
		}
		p--
	}
	value, suffix := s[:p], s[p:]
	suffix = strings.ToUpper(suffix)
	value = strings.TrimSpace(value)

	if suffix == "" || suffix == "B" || value == "" {
		if strings.ContainsAny(value, ".e") {
			return errs.New("size %q must be an integer byte count", s)
		}
		v, err := strconv.ParseInt(value, 10, 64)
		*size = Size(v)
		return errs.Wrap(err)
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return errs.Wrap(err)
	}

	switch suffix {
	case "KB":
		*size = Size(v * KB.Float64())
	case "MB":
		*size = Size(v * MB.Float64())
	case "GB":
		*size = Size(v * GB.Float64())
	case "TB":
		*size = Size(v * TB.Float64())
	case "KIB":
		*size = Size(v * KiB.Float64())
	case "MIB":
		*size = Size(v * MiB.Float64())
	case "GIB":
		*size = Size(v * GiB.Float64())
	case "TIB":
		*size = Size(v * TiB.Float64())
	default:
		return errs.New("unknown size suffix %q", suffix)
	}

	return nil
}

// Type implements pflag.Value.
func (Size) Type() string { return "memory.Size" }
