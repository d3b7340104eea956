// Package disk models the geometry of a partitioned block device.
//
// A Disk carries the label-level facts about a device: sector size,
// alignment grain, total length and the partition table entries that occupy
// it. Partition entries live in an arena owned by the Disk and are
// addressed by id; the Disk keeps an ordered index list on the side, so
// attaching and detaching entries is a single index operation and no
// back-reference cycles exist between entries and their disk.
//
// All functions here are pure sector arithmetic over the in-memory
// geometry; the package performs no block-level I/O.
package disk

import (
	"encoding/json"
	"fmt"
)

const (
	// DefaultSectorSize is the default sector size in bytes.
	DefaultSectorSize = 512

	// DefaultGrainSectors is the default alignment grain in sectors. With
	// 512 byte sectors this makes partition boundaries align to 1 MiB,
	// which is what common partitioning tools optimize for.
	DefaultGrainSectors = 2048

	// gptEntryBytes is the size of one GPT partition entry.
	gptEntryBytes = 128

	// gptMaxPartitions is the number of partition entries reserved in a
	// GPT header.
	gptMaxPartitions = 128

	// dosMaxPrimary is the number of slots in a DOS partition table.
	dosMaxPrimary = 4

	// dosFirstLogicalNumber is the table number of the first logical
	// partition on a DOS label.
	dosFirstLogicalNumber = 5
)

// LabelType is the partition table (disklabel) type enum.
type LabelType uint64

const (
	LABEL_NONE LabelType = iota
	LABEL_DOS
	LABEL_GPT
)

func (t LabelType) String() string {
	switch t {
	case LABEL_NONE:
		return ""
	case LABEL_DOS:
		return "dos"
	case LABEL_GPT:
		return "gpt"
	default:
		panic(fmt.Sprintf("unknown or unsupported label type with enum value %d", uint64(t)))
	}
}

func NewLabelType(s string) (LabelType, error) {
	switch s {
	case "":
		return LABEL_NONE, nil
	case "dos":
		return LABEL_DOS, nil
	case "gpt":
		return LABEL_GPT, nil
	default:
		return LABEL_NONE, fmt.Errorf("unknown or unsupported label type name: %s", s)
	}
}

func (t LabelType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *LabelType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	lt, err := NewLabelType(s)
	if err != nil {
		return err
	}
	*t = lt
	return nil
}

// Disk is the geometry of one partitioned block device.
type Disk struct {
	Path       string    // device node name, e.g. "vda"
	SectorSize uint64    // bytes
	Length     uint64    // total number of sectors
	Grain      uint64    // alignment grain in sectors
	Label      LabelType // partition table type

	// partition entry arena; removed entries leave a nil slot so ids
	// stay stable
	parts []*Partition
	// live entry ids ordered by start sector
	order []int

	// names of the devices currently attached as children of this disk
	children []string
}

// New creates a Disk with the given geometry. The length is the total
// device size in sectors.
func New(path string, length, sectorSize, grain uint64, label LabelType) (*Disk, error) {
	if sectorSize == 0 {
		return nil, fmt.Errorf("disk %q: sector size must be positive", path)
	}
	if grain == 0 {
		return nil, fmt.Errorf("disk %q: alignment grain must be positive", path)
	}
	if label != LABEL_DOS && label != LABEL_GPT {
		return nil, fmt.Errorf("disk %q: unsupported label type %q", path, label)
	}
	d := &Disk{
		Path:       path,
		SectorSize: sectorSize,
		Length:     length,
		Grain:      grain,
		Label:      label,
	}
	if d.Length <= d.headerSectors()+d.footerSectors() {
		return nil, fmt.Errorf("disk %q: %d sectors leave no usable space under a %s label", path, length, label)
	}
	return d, nil
}

// SectorsToBytes converts the given number of sectors to bytes.
func (d *Disk) SectorsToBytes(n uint64) uint64 {
	return n * d.SectorSize
}

// BytesToSectors converts the given number of bytes to full sectors.
func (d *Disk) BytesToSectors(n uint64) uint64 {
	return n / d.SectorSize
}

// headerSectors returns the number of sectors reserved at the start of the
// disk for the label itself.
func (d *Disk) headerSectors() uint64 {
	if d.Label == LABEL_GPT {
		// protective MBR, GPT header and the partition entry array
		entries := (gptMaxPartitions*gptEntryBytes + d.SectorSize - 1) / d.SectorSize
		return 2 + entries
	}
	// the MBR occupies sector zero
	return 1
}

// footerSectors returns the number of sectors reserved at the end of the
// disk. Only GPT keeps a secondary header there.
func (d *Disk) footerSectors() uint64 {
	if d.Label == LABEL_GPT {
		entries := (gptMaxPartitions*gptEntryBytes + d.SectorSize - 1) / d.SectorSize
		return 1 + entries
	}
	return 0
}

// UsableRegion returns the sector range partitions may occupy on this disk.
func (d *Disk) UsableRegion() Region {
	return Region{
		Start: d.headerSectors(),
		End:   d.Length - 1 - d.footerSectors(),
	}
}

// Alignment returns the start-boundary alignment of this disk.
func (d *Disk) Alignment() Alignment {
	return Alignment{Grain: d.Grain}
}

// EndAlignment returns the end-boundary alignment of this disk. An end
// sector is aligned when the sector right after it sits on a grain
// boundary.
func (d *Disk) EndAlignment() Alignment {
	return Alignment{Grain: d.Grain, Phase: d.Grain - 1}
}

// GrainBytes returns the alignment grain in bytes.
func (d *Disk) GrainBytes() uint64 {
	return d.SectorsToBytes(d.Grain)
}

// AttachChild records the named device as a child of this disk. Attaching
// the same name twice is a no-op.
func (d *Disk) AttachChild(name string) {
	for _, c := range d.children {
		if c == name {
			return
		}
	}
	d.children = append(d.children, name)
}

// DetachChild removes the named device from the disk's children.
func (d *Disk) DetachChild(name string) {
	for i, c := range d.children {
		if c == name {
			d.children = append(d.children[:i], d.children[i+1:]...)
			return
		}
	}
}

// Children returns the names of the devices attached to this disk.
func (d *Disk) Children() []string {
	out := make([]string, len(d.children))
	copy(out, d.children)
	return out
}
