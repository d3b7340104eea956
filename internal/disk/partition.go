package disk

import (
	"fmt"
	"sort"
	"strings"
)

// PartitionType is the table-entry type enum.
type PartitionType uint64

const (
	TYPE_PRIMARY PartitionType = iota
	TYPE_EXTENDED
	TYPE_LOGICAL
)

func (t PartitionType) String() string {
	switch t {
	case TYPE_PRIMARY:
		return "primary"
	case TYPE_EXTENDED:
		return "extended"
	case TYPE_LOGICAL:
		return "logical"
	default:
		panic(fmt.Sprintf("unknown or unsupported partition type with enum value %d", uint64(t)))
	}
}

func NewPartitionType(s string) (PartitionType, error) {
	switch s {
	case "primary":
		return TYPE_PRIMARY, nil
	case "extended":
		return TYPE_EXTENDED, nil
	case "logical":
		return TYPE_LOGICAL, nil
	default:
		return TYPE_PRIMARY, fmt.Errorf("unknown or unsupported partition type name: %s", s)
	}
}

// Partition is one partition table entry. Entries are owned by their Disk's
// arena and referenced by ID; they carry no back-pointer to the disk.
type Partition struct {
	ID     int           // arena id, stable for the lifetime of the disk
	Number int           // table slot, e.g. 1-4 for dos primaries, 5+ for logicals
	Start  uint64        // first sector
	End    uint64        // last sector, inclusive
	Type   PartitionType // primary, extended or logical
	UUID   string        // empty until generated or loaded
}

// Region returns the sector range the entry occupies.
func (p *Partition) Region() Region {
	return Region{Start: p.Start, End: p.End}
}

// Sectors returns the length of the entry in sectors.
func (p *Partition) Sectors() uint64 {
	return p.Region().Length()
}

// PartitionNode returns the device node name for a partition of this disk,
// e.g. "vda3" for disk "vda", or "nvme0n1p3" for disk "nvme0n1".
func (d *Disk) PartitionNode(p *Partition) string {
	if p == nil {
		return ""
	}
	sep := ""
	if n := len(d.Path); n > 0 && d.Path[n-1] >= '0' && d.Path[n-1] <= '9' {
		sep = "p"
	}
	return fmt.Sprintf("%s%s%d", d.Path, sep, p.Number)
}

// AddPartition adds a table entry covering [start, end] and returns it.
// Geometry is taken as given, i.e. no alignment is applied; historical
// layouts with unaligned boundaries stay representable. The entry must fit
// the disk's usable region and must not overlap existing entries at its
// nesting level. Logical entries must nest strictly inside the extended
// entry, which must already exist.
func (d *Disk) AddPartition(start, end uint64, typ PartitionType) (*Partition, error) {
	if start > end {
		return nil, fmt.Errorf("disk %q: partition start sector %d is past its end sector %d", d.Path, start, end)
	}
	usable := d.UsableRegion()
	if start < usable.Start || end > usable.End {
		return nil, fmt.Errorf("disk %q: partition [%d, %d] outside of usable region [%d, %d]",
			d.Path, start, end, usable.Start, usable.End)
	}

	if d.Label == LABEL_GPT && typ != TYPE_PRIMARY {
		return nil, fmt.Errorf("disk %q: %s partitions are only supported on dos labels", d.Path, typ)
	}

	var number int
	switch typ {
	case TYPE_PRIMARY, TYPE_EXTENDED:
		if typ == TYPE_EXTENDED && d.ExtendedPartition() != nil {
			return nil, fmt.Errorf("disk %q: the label already has an extended partition", d.Path)
		}
		for _, q := range d.topLevel() {
			if overlaps(q.Region(), Region{start, end}) {
				return nil, fmt.Errorf("disk %q: partition [%d, %d] overlaps partition %d [%d, %d]",
					d.Path, start, end, q.Number, q.Start, q.End)
			}
		}
		var err error
		number, err = d.freePrimaryNumber()
		if err != nil {
			return nil, err
		}
	case TYPE_LOGICAL:
		ext := d.ExtendedPartition()
		if ext == nil {
			return nil, fmt.Errorf("disk %q: logical partition requires an extended partition", d.Path)
		}
		// the extended partition's own first sector holds the EBR chain
		if start <= ext.Start || end > ext.End {
			return nil, fmt.Errorf("disk %q: logical partition [%d, %d] does not nest inside extended partition [%d, %d]",
				d.Path, start, end, ext.Start, ext.End)
		}
		number = dosFirstLogicalNumber
		for _, q := range d.LogicalChildren(ext) {
			if overlaps(q.Region(), Region{start, end}) {
				return nil, fmt.Errorf("disk %q: logical partition [%d, %d] overlaps partition %d [%d, %d]",
					d.Path, start, end, q.Number, q.Start, q.End)
			}
			if q.Number >= number {
				number = q.Number + 1
			}
		}
	default:
		return nil, fmt.Errorf("disk %q: unsupported partition type %d", d.Path, uint64(typ))
	}

	p := &Partition{
		ID:     len(d.parts),
		Number: number,
		Start:  start,
		End:    end,
		Type:   typ,
	}
	d.parts = append(d.parts, p)
	d.order = append(d.order, p.ID)
	sort.Slice(d.order, func(i, j int) bool {
		return d.parts[d.order[i]].Start < d.parts[d.order[j]].Start
	})
	return p, nil
}

// RemovePartition detaches the entry with the given id from the table. An
// extended partition can only be removed once all of its logical children
// are gone.
func (d *Disk) RemovePartition(id int) error {
	p := d.byID(id)
	if p == nil {
		return fmt.Errorf("disk %q: no partition table entry with id %d", d.Path, id)
	}
	if p.Type == TYPE_EXTENDED {
		if n := len(d.LogicalChildren(p)); n > 0 {
			return fmt.Errorf("disk %q: extended partition %d still has %d logical children", d.Path, p.Number, n)
		}
	}
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.parts[id] = nil
	return nil
}

// ResizePartition moves the end sector of the entry with the given id. The
// new geometry has to satisfy the same containment and overlap rules as
// AddPartition; extended partitions additionally must keep covering all of
// their logical children.
func (d *Disk) ResizePartition(id int, newEnd uint64) error {
	p := d.byID(id)
	if p == nil {
		return fmt.Errorf("disk %q: no partition table entry with id %d", d.Path, id)
	}
	if newEnd < p.Start {
		return fmt.Errorf("disk %q: new end sector %d is before start sector %d", d.Path, newEnd, p.Start)
	}

	var bound Region
	switch p.Type {
	case TYPE_LOGICAL:
		ext := d.ExtendedPartition()
		if ext == nil {
			return fmt.Errorf("disk %q: logical partition %d has no extended parent", d.Path, p.Number)
		}
		bound = ext.Region()
		for _, q := range d.LogicalChildren(ext) {
			if q.ID != id && overlaps(q.Region(), Region{p.Start, newEnd}) {
				return fmt.Errorf("disk %q: resized partition [%d, %d] would overlap partition %d [%d, %d]",
					d.Path, p.Start, newEnd, q.Number, q.Start, q.End)
			}
		}
	default:
		bound = d.UsableRegion()
		if p.Type == TYPE_EXTENDED {
			for _, q := range d.LogicalChildren(p) {
				if q.End > newEnd {
					return fmt.Errorf("disk %q: extended partition end %d would cut off logical partition %d ending at %d",
						d.Path, newEnd, q.Number, q.End)
				}
			}
		}
		for _, q := range d.topLevel() {
			if q.ID != id && overlaps(q.Region(), Region{p.Start, newEnd}) {
				return fmt.Errorf("disk %q: resized partition [%d, %d] would overlap partition %d [%d, %d]",
					d.Path, p.Start, newEnd, q.Number, q.Start, q.End)
			}
		}
	}
	if newEnd > bound.End {
		return fmt.Errorf("disk %q: new end sector %d past last usable sector %d", d.Path, newEnd, bound.End)
	}

	p.End = newEnd
	return nil
}

// Partitions returns the live table entries ordered by start sector.
func (d *Disk) Partitions() []*Partition {
	out := make([]*Partition, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.parts[id])
	}
	return out
}

// PartitionAt returns the entry containing the given sector. When the
// sector falls inside the extended partition, the logical entry is
// preferred over its container, matching what partition editors report.
// Returns nil if the sector is not occupied.
func (d *Disk) PartitionAt(sector uint64) *Partition {
	var ext *Partition
	for _, p := range d.Partitions() {
		if !p.Region().Contains(sector) {
			continue
		}
		if p.Type == TYPE_EXTENDED {
			ext = p
			continue
		}
		return p
	}
	return ext
}

// PartitionByNumber returns the entry with the given table number, or nil.
func (d *Disk) PartitionByNumber(number int) *Partition {
	for _, p := range d.Partitions() {
		if p.Number == number {
			return p
		}
	}
	return nil
}

// PartitionByPath returns the entry whose device node name matches the
// given path, or nil. The path may carry a "/dev/" prefix.
func (d *Disk) PartitionByPath(path string) *Partition {
	name := strings.TrimPrefix(path, "/dev/")
	for _, p := range d.Partitions() {
		if d.PartitionNode(p) == name {
			return p
		}
	}
	return nil
}

// ExtendedPartition returns the extended entry of a dos label, or nil.
func (d *Disk) ExtendedPartition() *Partition {
	for _, p := range d.Partitions() {
		if p.Type == TYPE_EXTENDED {
			return p
		}
	}
	return nil
}

// LogicalChildren returns the logical entries nested inside the given
// extended entry, ordered by start sector.
func (d *Disk) LogicalChildren(ext *Partition) []*Partition {
	var out []*Partition
	if ext == nil {
		return out
	}
	for _, p := range d.Partitions() {
		if p.Type == TYPE_LOGICAL && p.Start > ext.Start && p.End <= ext.End {
			out = append(out, p)
		}
	}
	return out
}

// topLevel returns the primary and extended entries ordered by start
// sector, i.e. the entries competing for top-level disk space.
func (d *Disk) topLevel() []*Partition {
	var out []*Partition
	for _, p := range d.Partitions() {
		if p.Type != TYPE_LOGICAL {
			out = append(out, p)
		}
	}
	return out
}

func (d *Disk) byID(id int) *Partition {
	if id < 0 || id >= len(d.parts) {
		return nil
	}
	return d.parts[id]
}

// freePrimaryNumber returns the lowest unused primary slot number.
func (d *Disk) freePrimaryNumber() (int, error) {
	max := dosMaxPrimary
	if d.Label == LABEL_GPT {
		max = gptMaxPartitions
	}
	used := map[int]bool{}
	for _, p := range d.topLevel() {
		used[p.Number] = true
	}
	for n := 1; n <= max; n++ {
		if !used[n] {
			return n, nil
		}
	}
	return 0, fmt.Errorf("disk %q: maximum number of partitions reached (%d)", d.Path, max)
}

func overlaps(a, b Region) bool {
	return a.Start <= b.End && b.Start <= a.End
}
