package disk

// Region is a contiguous range of sectors on a disk. Both bounds are
// inclusive.
type Region struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Length returns the number of sectors in the region.
func (r Region) Length() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether the sector lies inside the region.
func (r Region) Contains(sector uint64) bool {
	return sector >= r.Start && sector <= r.End
}

// Alignment describes the sector grid that partition boundaries have to sit
// on. A sector is aligned when sector % Grain == Phase.
//
// Start boundaries use phase zero. End boundaries use phase Grain-1, so that
// the first sector after an aligned end falls exactly on a grain boundary.
// The two are distinct on purpose: historical partitions with unaligned
// starts are tolerated, but any newly sized region must have an aligned end.
type Alignment struct {
	Grain uint64 // sectors
	Phase uint64 // offset of the aligned grid within the grain
}

// IsAligned reports whether the sector is on the alignment grid and inside
// the region.
func (a Alignment) IsAligned(r Region, sector uint64) bool {
	return r.Contains(sector) && sector%a.Grain == a.Phase%a.Grain
}

// AlignUp returns the smallest aligned sector that is greater than or equal
// to the given sector and still inside the region. The second return value
// is false when no such sector exists.
func (a Alignment) AlignUp(r Region, sector uint64) (uint64, bool) {
	if sector < r.Start {
		sector = r.Start
	}
	phase := a.Phase % a.Grain
	rem := sector % a.Grain

	aligned := sector - rem + phase
	if rem > phase {
		aligned += a.Grain
	}
	if !r.Contains(aligned) {
		return 0, false
	}
	return aligned, true
}

// AlignDown returns the largest aligned sector that is less than or equal
// to the given sector and still inside the region. The second return value
// is false when no such sector exists.
func (a Alignment) AlignDown(r Region, sector uint64) (uint64, bool) {
	if sector > r.End {
		sector = r.End
	}
	phase := a.Phase % a.Grain
	rem := sector % a.Grain

	aligned := sector - rem + phase
	if rem < phase {
		if aligned < a.Grain {
			return 0, false
		}
		aligned -= a.Grain
	}
	if aligned > sector || !r.Contains(aligned) {
		return 0, false
	}
	return aligned, true
}
