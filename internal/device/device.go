// Package device binds logical partition devices to partition table
// entries and computes the legal size range of each device.
//
// A PartitionDevice wraps at most one table entry of a disk.Disk. For a
// device that already exists on disk the binding is resolved once, at
// construction, and failing to resolve it is an explicit error; it is never
// papered over with defaults. Size queries and target-size mutation operate
// on the bound entry only.
//
// Everything here is synchronous and single threaded: size computations are
// pure functions over the geometry at call time and mutation is one atomic
// step. Callers that share a disk across goroutines have to serialize
// access themselves.
package device

import (
	"fmt"

	"github.com/osbuild/disklayout/internal/datasizes"
	"github.com/osbuild/disklayout/internal/disk"
)

// PartitionDevice is a logical device over one partition table entry.
type PartitionDevice struct {
	name   string
	disk   *disk.Disk
	part   *disk.Partition
	format Format
	exists bool

	targetSize datasizes.Size
}

// Option configures a PartitionDevice during construction.
type Option func(*PartitionDevice)

// WithFormat sets the device's format. The default is an empty FormatSpec.
func WithFormat(f Format) Option {
	return func(pd *PartitionDevice) {
		pd.format = f
	}
}

// Existing marks the device as representing a partition that is already
// present on disk, which makes construction resolve the table entry
// binding.
func Existing() Option {
	return func(pd *PartitionDevice) {
		pd.exists = true
	}
}

// WithSize sets the intended size of a future (not yet existing) device.
// It is ignored for existing devices, whose size always comes from the
// bound entry's geometry.
func WithSize(size datasizes.Size) Option {
	return func(pd *PartitionDevice) {
		pd.targetSize = size
	}
}

// New creates a PartitionDevice named after its device node, e.g. "vda1".
//
// For an existing device the matching table entry is looked up on the disk
// and bound; if none matches, New fails with ErrDevice and the device is
// not attached as a child of the disk. A future device carries no binding
// until the layout is committed, which is outside this package's scope.
func New(name string, dsk *disk.Disk, opts ...Option) (*PartitionDevice, error) {
	pd := &PartitionDevice{
		name:   name,
		disk:   dsk,
		format: FormatSpec{},
	}
	for _, opt := range opts {
		opt(pd)
	}

	if pd.exists && dsk != nil {
		part := dsk.PartitionByPath(name)
		if part == nil {
			return nil, fmt.Errorf("%w: no partition table entry for %q on disk %q", ErrDevice, name, dsk.Path)
		}
		pd.part = part
		pd.targetSize = pd.Size()
		dsk.AttachChild(name)
	}

	return pd, nil
}

// Name returns the device node name.
func (pd *PartitionDevice) Name() string {
	return pd.name
}

// Disk returns the disk this device lives on.
func (pd *PartitionDevice) Disk() *disk.Disk {
	return pd.disk
}

// Partition returns the bound table entry, or nil for a future device.
func (pd *PartitionDevice) Partition() *disk.Partition {
	return pd.part
}

// Format returns the device's format.
func (pd *PartitionDevice) Format() Format {
	return pd.format
}

// SetFormat replaces the device's format.
func (pd *PartitionDevice) SetFormat(f Format) {
	pd.format = f
}

// Exists reports whether the device represents something already on disk.
func (pd *PartitionDevice) Exists() bool {
	return pd.exists
}

// Size returns the current effective size of the device. For a bound
// device this is always derived from the entry's on-disk geometry; for a
// future device it is the intended size.
func (pd *PartitionDevice) Size() datasizes.Size {
	if pd.part != nil {
		return datasizes.FromSectors(pd.part.Sectors(), pd.disk.SectorSize)
	}
	return pd.targetSize
}

// TargetSize returns the most recently applied target size. Until
// SetTargetSize succeeds it equals the size at construction time.
func (pd *PartitionDevice) TargetSize() datasizes.Size {
	return pd.targetSize
}

// boundPartition returns the bound table entry, or ErrDevice when the
// device claims to exist but has no binding to back size queries.
func (pd *PartitionDevice) boundPartition() (*disk.Partition, error) {
	if pd.part == nil {
		return nil, fmt.Errorf("%w: device %q has no backing partition table entry", ErrDevice, pd.name)
	}
	return pd.part, nil
}

// growthRegion returns the sector range within which the entry's end
// sector may move: up to the end of the extended partition for a logical
// entry, up to the end of the disk's usable region otherwise. Other
// partitions are not considered; they bound growth via the free region
// list, not via alignment.
func (pd *PartitionDevice) growthRegion(part *disk.Partition) disk.Region {
	limit := pd.disk.UsableRegion().End
	if part.Type == disk.TYPE_LOGICAL {
		if ext := pd.disk.ExtendedPartition(); ext != nil {
			limit = ext.End
		}
	}
	return disk.Region{Start: part.Start, End: limit}
}

// alignedSizeUp converts the given byte size to an end sector from the
// entry's fixed start, rounds that sector up to the next aligned end and
// converts back. The result is the smallest alignment-legal size that is
// not below the input.
func (pd *PartitionDevice) alignedSizeUp(part *disk.Partition, size datasizes.Size) (datasizes.Size, error) {
	ss := pd.disk.SectorSize
	sectors := (uint64(size) + ss - 1) / ss
	if sectors == 0 {
		sectors = 1
	}
	region := pd.growthRegion(part)
	end, ok := pd.disk.EndAlignment().AlignUp(region, part.Start+sectors-1)
	if !ok {
		return 0, fmt.Errorf("no aligned end sector for size %s from sector %d on disk %q", size, part.Start, pd.disk.Path)
	}
	return datasizes.FromSectors(end-part.Start+1, ss), nil
}

// AlignTargetSize rounds the given size to the nearest larger
// alignment-legal value for this device, falling back to the nearest
// smaller one at the edge of the disk. A zero size is returned unchanged.
func (pd *PartitionDevice) AlignTargetSize(size datasizes.Size) datasizes.Size {
	if size == 0 || pd.part == nil {
		return size
	}
	if aligned, err := pd.alignedSizeUp(pd.part, size); err == nil {
		return aligned
	}
	ss := pd.disk.SectorSize
	region := pd.growthRegion(pd.part)
	end, ok := pd.disk.EndAlignment().AlignDown(region, pd.part.Start+size.Sectors(ss)-1)
	if !ok {
		return size
	}
	return datasizes.FromSectors(end-pd.part.Start+1, ss)
}

// MinSize returns the smallest size SetTargetSize will accept for this
// device.
//
// For a regular partition this is the larger of the format's minimum
// instance size and one alignment grain, rounded up to an aligned end
// sector. For an extended partition the minimum has to keep covering all
// logical children; their own formats play no role, because the extended
// entry's payload is just the EBR chain. A format that exists but is not
// resizable pins the device to its current size.
func (pd *PartitionDevice) MinSize() (datasizes.Size, error) {
	part, err := pd.boundPartition()
	if err != nil {
		return 0, err
	}

	if part.Type == disk.TYPE_EXTENDED {
		return pd.extendedMinSize(part)
	}

	if pd.format.Exists() && !pd.format.Resizable() {
		return pd.Size(), nil
	}

	floor := uint64(pd.format.MinInstanceSize())
	if g := pd.disk.GrainBytes(); g > floor {
		floor = g
	}
	return pd.alignedSizeUp(part, datasizes.Size(floor))
}

// extendedMinSize computes MinSize for an extended partition. With no
// logical children the floor is the larger of the grain and 1 KiB. With
// children the minimum is the smallest size still containing the furthest
// child end sector: the current size less the unoccupied tail of the
// extended region.
func (pd *PartitionDevice) extendedMinSize(part *disk.Partition) (datasizes.Size, error) {
	children := pd.disk.LogicalChildren(part)
	if len(children) == 0 {
		floor := pd.disk.GrainBytes()
		if floor < datasizes.KibiByte {
			floor = datasizes.KibiByte
		}
		return pd.alignedSizeUp(part, datasizes.Size(floor))
	}

	lastEnd := uint64(0)
	for _, child := range children {
		if child.End > lastEnd {
			lastEnd = child.End
		}
	}
	tail := pd.disk.SectorsToBytes(part.End - lastEnd)
	return pd.alignedSizeUp(part, pd.Size()-datasizes.Size(tail))
}

// MaxSize returns the largest size SetTargetSize will accept for this
// device: the span from the entry's start through the largest aligned end
// sector inside the free region that immediately follows it. Without a
// trailing free region the device cannot grow and MaxSize equals the
// current size.
func (pd *PartitionDevice) MaxSize() (datasizes.Size, error) {
	part, err := pd.boundPartition()
	if err != nil {
		return 0, err
	}

	cur := pd.Size()
	if pd.format.Exists() && !pd.format.Resizable() {
		return cur, nil
	}

	free, ok := pd.disk.FreeRegionAfter(part)
	if !ok {
		return cur, nil
	}

	// largest aligned end at or below the free region's raw end; the raw
	// end itself may be unaligned when the next partition starts off-grain
	end, ok := pd.disk.EndAlignment().AlignDown(disk.Region{Start: part.Start, End: free.End}, free.End)
	if !ok || end <= part.End {
		return cur, nil
	}
	return datasizes.FromSectors(end-part.Start+1, pd.disk.SectorSize), nil
}

// SetTargetSize validates the requested size against the device's bounds
// and alignment policy and applies it to the bound table entry.
//
// Validation is ordered: sizes below MinSize fail with ErrSizeTooSmall,
// sizes above MaxSize with ErrSizeTooLarge and sizes whose end sector is
// not grain-aligned with ErrUnaligned. On any failure the entry and the
// reported size are left completely unchanged. Re-applying the current
// validated value is a no-op.
func (pd *PartitionDevice) SetTargetSize(requested datasizes.Size) error {
	part, err := pd.boundPartition()
	if err != nil {
		return err
	}

	min, err := pd.MinSize()
	if err != nil {
		return err
	}
	if requested < min {
		return fmt.Errorf("%w: requested %s, minimum is %s", ErrSizeTooSmall, requested, min)
	}

	max, err := pd.MaxSize()
	if err != nil {
		return err
	}
	if requested > max {
		return fmt.Errorf("%w: requested %s, maximum is %s", ErrSizeTooLarge, requested, max)
	}

	ss := pd.disk.SectorSize
	if !requested.IsSectorMultiple(ss) {
		return fmt.Errorf("%w: %s is not a whole number of %d byte sectors", ErrUnaligned, requested, ss)
	}
	end := part.Start + requested.Sectors(ss) - 1
	if !pd.disk.EndAlignment().IsAligned(pd.growthRegion(part), end) {
		return fmt.Errorf("%w: %s puts the end at sector %d, off the %d sector grain", ErrUnaligned, requested, end, pd.disk.Grain)
	}

	if err := pd.disk.ResizePartition(part.ID, end); err != nil {
		return err
	}
	pd.targetSize = requested
	return nil
}
