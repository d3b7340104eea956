// Package datasizes provides an exact, integer representation of byte
// quantities together with unit-aware parsing and formatting.
//
// All partition geometry in this repository is computed from Size values.
// Size is a plain uint64 number of bytes underneath; there is deliberately
// no floating point anywhere in the conversion paths, because rounding a
// size through a float silently produces end sectors that violate the
// disk's alignment grain.
package datasizes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Size is a wrapper around uint64 with support for reading from string
// json/toml, so {"size": 123}, {"size": "1234"} and {"size": "1 GiB"} are
// all supported.
type Size uint64

// Uint64 returns the size as uint64. This is a convenience function, it is
// strictly equivalent to uint64(Size(1)).
func (si Size) Uint64() uint64 {
	return uint64(si)
}

// Sectors returns the number of full sectors of the given sector size that
// fit into si.
func (si Size) Sectors(sectorSize uint64) uint64 {
	if sectorSize == 0 {
		return 0
	}
	return uint64(si) / sectorSize
}

// IsSectorMultiple reports whether si is an exact multiple of the given
// sector size.
func (si Size) IsSectorMultiple(sectorSize uint64) bool {
	return sectorSize != 0 && uint64(si)%sectorSize == 0
}

// FromSectors returns the Size spanned by n sectors of the given sector
// size.
func FromSectors(n, sectorSize uint64) Size {
	return Size(n * sectorSize)
}

// String returns the size in a human readable form, using the largest
// binary unit that divides it exactly, e.g. "6 MiB" or "3250585 B".
func (si Size) String() string {
	units := []struct {
		suffix   string
		multiple uint64
	}{
		{"TiB", TebiByte},
		{"GiB", GibiByte},
		{"MiB", MebiByte},
		{"KiB", KibiByte},
	}

	v := uint64(si)
	for _, unit := range units {
		if v >= unit.multiple && v%unit.multiple == 0 {
			return fmt.Sprintf("%d %s", v/unit.multiple, unit.suffix)
		}
	}
	return fmt.Sprintf("%d B", v)
}

func (si *Size) UnmarshalTOML(data interface{}) error {
	i, err := decodeSize(data)
	if err != nil {
		return fmt.Errorf("error decoding TOML size: %w", err)
	}
	*si = Size(i)
	return nil
}

func (si Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(si))
}

func (si *Size) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewBuffer(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	i, err := decodeSize(v)
	if err != nil {
		return fmt.Errorf("error decoding size: %w", err)
	}
	*si = Size(i)
	return nil
}

// decodeSize takes an integer or string representing a data size (with a
// data suffix) and returns the uint64 representation.
func decodeSize(size any) (uint64, error) {
	switch s := size.(type) {
	case string:
		return Parse(s)
	case json.Number:
		i, err := s.Int64()
		if i < 0 {
			return 0, fmt.Errorf("cannot be negative")
		}
		return uint64(i), err
	case int64:
		if s < 0 {
			return 0, fmt.Errorf("cannot be negative")
		}
		return uint64(s), nil
	case uint64:
		return s, nil
	case float64, float32:
		return 0, fmt.Errorf("cannot be float")
	default:
		return 0, fmt.Errorf("failed to convert value \"%v\" to number", size)
	}
}
