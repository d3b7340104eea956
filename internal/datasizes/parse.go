package datasizes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^([[:digit:]]+)(?:\.([[:digit:]]+))?\s*(kB|KiB|MB|MiB|GB|GiB|TB|TiB)?$`)

var unitMultiples = map[string]uint64{
	"kB":  KiloByte,
	"KiB": KibiByte,
	"MB":  MegaByte,
	"MiB": MebiByte,
	"GB":  GigaByte,
	"GiB": GibiByte,
	"TB":  TeraByte,
	"TiB": TebiByte,
	"":    1,
}

// Parse converts a size specified as a string in kB/KiB/MB/etc. to a number
// of bytes represented by uint64.
//
// Fractional values such as "3.1 MiB" are supported as long as a unit is
// given. The fractional part is scaled with integer arithmetic and any
// remainder below one byte is truncated, so the result is always an exact
// byte count.
func Parse(size string) (uint64, error) {
	size = strings.TrimSpace(size)

	m := sizePattern.FindStringSubmatch(size)
	if m == nil {
		return 0, fmt.Errorf("cannot parse size %q: expected a number with an optional unit (kB, KiB, MB, MiB, GB, GiB, TB, TiB)", size)
	}
	whole, frac, unit := m[1], m[2], m[3]

	multiple := unitMultiples[unit]

	result, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse size %q as integer: %w", size, err)
	}
	result *= multiple

	if frac != "" {
		if unit == "" {
			return 0, fmt.Errorf("cannot parse size %q: fractional byte counts are not a thing", size)
		}
		fracValue, err := strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse size %q as integer: %w", size, err)
		}
		scale := uint64(1)
		for range frac {
			scale *= 10
		}
		result += fracValue * multiple / scale
	}

	return result, nil
}

// MustParse is like Parse but panics on invalid input. It is intended for
// tests and for compile-time constant-like size literals.
func MustParse(size string) Size {
	v, err := Parse(size)
	if err != nil {
		panic(err)
	}
	return Size(v)
}
