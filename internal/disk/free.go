package disk

// FreeRegions returns the unallocated sector ranges of the disk's usable
// region, ordered by start sector. Only top-level entries count as
// allocated: space inside the extended partition that no logical entry
// occupies is not usable for new top-level partitions.
//
// The list is recomputed from the current table on every call so that it
// never goes stale as sibling partitions come and go.
func (d *Disk) FreeRegions() []Region {
	var out []Region

	next := d.UsableRegion().Start
	for _, p := range d.topLevel() {
		if p.Start > next {
			out = append(out, Region{Start: next, End: p.Start - 1})
		}
		if p.End+1 > next {
			next = p.End + 1
		}
	}
	if end := d.UsableRegion().End; next <= end {
		out = append(out, Region{Start: next, End: end})
	}
	return out
}

// FreeRegionAfter returns the free region starting immediately after the
// given entry's end sector. For a logical entry the search is confined to
// the inside of the extended partition. The second return value is false
// when the entry has no adjacent free space and therefore cannot grow.
func (d *Disk) FreeRegionAfter(p *Partition) (Region, bool) {
	free := Region{Start: p.End + 1}

	if p.Type == TYPE_LOGICAL {
		ext := d.ExtendedPartition()
		if ext == nil || p.End >= ext.End {
			return Region{}, false
		}
		free.End = ext.End
		for _, q := range d.LogicalChildren(ext) {
			if q.Start > p.End && q.Start-1 < free.End {
				free.End = q.Start - 1
			}
		}
	} else {
		usable := d.UsableRegion()
		if p.End >= usable.End {
			return Region{}, false
		}
		free.End = usable.End
		for _, q := range d.topLevel() {
			if q.Start > p.End && q.Start-1 < free.End {
				free.End = q.Start - 1
			}
		}
	}

	if free.End < free.Start {
		return Region{}, false
	}
	return free, true
}
