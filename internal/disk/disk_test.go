package disk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/disklayout/internal/disk"
)

// 10 MiB of 512 byte sectors with a 1 MiB grain, the geometry most of the
// tests run on.
func newDosDisk(t *testing.T) *disk.Disk {
	t.Helper()
	d, err := disk.New("vda", 20480, 512, 2048, disk.LABEL_DOS)
	require.NoError(t, err)
	return d
}

func TestNewValidation(t *testing.T) {
	_, err := disk.New("vda", 20480, 0, 2048, disk.LABEL_DOS)
	assert.ErrorContains(t, err, "sector size")

	_, err = disk.New("vda", 20480, 512, 0, disk.LABEL_DOS)
	assert.ErrorContains(t, err, "grain")

	_, err = disk.New("vda", 20480, 512, 2048, disk.LABEL_NONE)
	assert.ErrorContains(t, err, "label")

	_, err = disk.New("vda", 1, 512, 2048, disk.LABEL_DOS)
	assert.ErrorContains(t, err, "usable")
}

func TestAddPartition(t *testing.T) {
	d := newDosDisk(t)

	p, err := d.AddPartition(2048, 14335, disk.TYPE_PRIMARY)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, uint64(12288), p.Sectors())
	assert.Equal(t, "vda1", d.PartitionNode(p))

	// start past end
	_, err = d.AddPartition(300, 200, disk.TYPE_PRIMARY)
	assert.ErrorContains(t, err, "past its end")

	// outside the usable region: sector 0 belongs to the MBR
	_, err = d.AddPartition(0, 100, disk.TYPE_PRIMARY)
	assert.ErrorContains(t, err, "usable region")
	_, err = d.AddPartition(20000, 20480, disk.TYPE_PRIMARY)
	assert.ErrorContains(t, err, "usable region")

	// overlap
	_, err = d.AddPartition(14000, 15000, disk.TYPE_PRIMARY)
	assert.ErrorContains(t, err, "overlaps")

	q, err := d.AddPartition(14336, 20479, disk.TYPE_PRIMARY)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Number)
}

func TestAddPartitionNesting(t *testing.T) {
	d := newDosDisk(t)

	// logical without an extended partition
	_, err := d.AddPartition(2049, 7168, disk.TYPE_LOGICAL)
	assert.ErrorContains(t, err, "requires an extended")

	ext, err := d.AddPartition(2048, 14336, disk.TYPE_EXTENDED)
	require.NoError(t, err)
	assert.Same(t, ext, d.ExtendedPartition())

	// only one extended partition per label
	_, err = d.AddPartition(16384, 18431, disk.TYPE_EXTENDED)
	assert.ErrorContains(t, err, "already has an extended")

	// the extended partition's first sector holds the EBR, logicals
	// start past it
	_, err = d.AddPartition(2048, 7168, disk.TYPE_LOGICAL)
	assert.ErrorContains(t, err, "nest inside")
	_, err = d.AddPartition(2049, 14337, disk.TYPE_LOGICAL)
	assert.ErrorContains(t, err, "nest inside")

	log, err := d.AddPartition(2049, 7168, disk.TYPE_LOGICAL)
	require.NoError(t, err)
	assert.Equal(t, 5, log.Number)
	assert.Equal(t, "vda5", d.PartitionNode(log))

	log2, err := d.AddPartition(8192, 10239, disk.TYPE_LOGICAL)
	require.NoError(t, err)
	assert.Equal(t, 6, log2.Number)

	children := d.LogicalChildren(ext)
	require.Len(t, children, 2)
	assert.Same(t, log, children[0])
	assert.Same(t, log2, children[1])

	// extended with children cannot be removed
	err = d.RemovePartition(ext.ID)
	assert.ErrorContains(t, err, "logical children")

	require.NoError(t, d.RemovePartition(log.ID))
	require.NoError(t, d.RemovePartition(log2.ID))
	require.NoError(t, d.RemovePartition(ext.ID))
	assert.Nil(t, d.ExtendedPartition())
}

func TestGPTRejectsExtended(t *testing.T) {
	d, err := disk.New("vdb", 204800, 512, 2048, disk.LABEL_GPT)
	require.NoError(t, err)

	_, err = d.AddPartition(2048, 4095, disk.TYPE_EXTENDED)
	assert.ErrorContains(t, err, "only supported on dos")

	usable := d.UsableRegion()
	assert.Equal(t, uint64(34), usable.Start)
	assert.Equal(t, uint64(204766), usable.End)
}

func TestPartitionLookup(t *testing.T) {
	d := newDosDisk(t)

	ext, err := d.AddPartition(2048, 14336, disk.TYPE_EXTENDED)
	require.NoError(t, err)
	log, err := d.AddPartition(2049, 7168, disk.TYPE_LOGICAL)
	require.NoError(t, err)

	// the logical entry wins over its container
	assert.Same(t, log, d.PartitionAt(2049))
	assert.Same(t, log, d.PartitionAt(7168))
	assert.Same(t, ext, d.PartitionAt(10000))
	assert.Nil(t, d.PartitionAt(16000))

	assert.Same(t, ext, d.PartitionByNumber(1))
	assert.Same(t, log, d.PartitionByNumber(5))
	assert.Same(t, log, d.PartitionByPath("vda5"))
	assert.Same(t, log, d.PartitionByPath("/dev/vda5"))
	assert.Nil(t, d.PartitionByPath("vda2"))
}

func TestPartitionNodeNVMe(t *testing.T) {
	d, err := disk.New("nvme0n1", 20480, 512, 2048, disk.LABEL_DOS)
	require.NoError(t, err)
	p, err := d.AddPartition(2048, 4095, disk.TYPE_PRIMARY)
	require.NoError(t, err)
	assert.Equal(t, "nvme0n1p1", d.PartitionNode(p))
}

func TestFreeRegions(t *testing.T) {
	d := newDosDisk(t)

	// empty disk: one big free region
	free := d.FreeRegions()
	require.Len(t, free, 1)
	assert.Equal(t, disk.Region{Start: 1, End: 20479}, free[0])

	p, err := d.AddPartition(2048, 14335, disk.TYPE_PRIMARY)
	require.NoError(t, err)

	free = d.FreeRegions()
	require.Len(t, free, 2)
	assert.Equal(t, disk.Region{Start: 1, End: 2047}, free[0])
	assert.Equal(t, disk.Region{Start: 14336, End: 20479}, free[1])

	after, ok := d.FreeRegionAfter(p)
	require.True(t, ok)
	assert.Equal(t, disk.Region{Start: 14336, End: 20479}, after)

	// fill the tail; the partition can no longer grow
	_, err = d.AddPartition(14336, 20479, disk.TYPE_PRIMARY)
	require.NoError(t, err)
	_, ok = d.FreeRegionAfter(p)
	assert.False(t, ok)
}

func TestFreeRegionAfterLogical(t *testing.T) {
	d := newDosDisk(t)

	ext, err := d.AddPartition(2048, 14336, disk.TYPE_EXTENDED)
	require.NoError(t, err)
	log, err := d.AddPartition(2049, 7168, disk.TYPE_LOGICAL)
	require.NoError(t, err)

	// growth of a logical entry is confined to the extended region
	after, ok := d.FreeRegionAfter(log)
	require.True(t, ok)
	assert.Equal(t, disk.Region{Start: 7169, End: 14336}, after)

	log2, err := d.AddPartition(10240, 14336, disk.TYPE_LOGICAL)
	require.NoError(t, err)
	after, ok = d.FreeRegionAfter(log)
	require.True(t, ok)
	assert.Equal(t, disk.Region{Start: 7169, End: 10239}, after)

	_, ok = d.FreeRegionAfter(log2)
	assert.False(t, ok)

	// the unoccupied inside of the extended partition is not free at the
	// top level
	free := d.FreeRegions()
	require.Len(t, free, 2)
	assert.Equal(t, disk.Region{Start: 1, End: 2047}, free[0])
	assert.Equal(t, disk.Region{Start: 14337, End: 20479}, free[1])

	_, ok = d.FreeRegionAfter(ext)
	require.True(t, ok)
}

func TestResizePartition(t *testing.T) {
	d := newDosDisk(t)

	p, err := d.AddPartition(2048, 14335, disk.TYPE_PRIMARY)
	require.NoError(t, err)
	q, err := d.AddPartition(16384, 18431, disk.TYPE_PRIMARY)
	require.NoError(t, err)

	require.NoError(t, d.ResizePartition(p.ID, 16383))
	assert.Equal(t, uint64(16383), p.End)

	err = d.ResizePartition(p.ID, 17000)
	assert.ErrorContains(t, err, "overlap")

	err = d.ResizePartition(p.ID, 2047)
	assert.ErrorContains(t, err, "before start")

	err = d.ResizePartition(q.ID, 20480)
	assert.ErrorContains(t, err, "usable")

	require.NoError(t, d.ResizePartition(p.ID, 14335))
	assert.Equal(t, uint64(14335), p.End)
}

func TestResizeExtendedCoversChildren(t *testing.T) {
	d := newDosDisk(t)

	ext, err := d.AddPartition(2048, 14336, disk.TYPE_EXTENDED)
	require.NoError(t, err)
	_, err = d.AddPartition(2049, 7168, disk.TYPE_LOGICAL)
	require.NoError(t, err)

	err = d.ResizePartition(ext.ID, 7000)
	assert.ErrorContains(t, err, "cut off")

	require.NoError(t, d.ResizePartition(ext.ID, 8191))
	assert.Equal(t, uint64(8191), ext.End)
}

func TestChildren(t *testing.T) {
	d := newDosDisk(t)
	assert.Empty(t, d.Children())

	d.AttachChild("vda1")
	d.AttachChild("vda1")
	d.AttachChild("vda2")
	assert.Equal(t, []string{"vda1", "vda2"}, d.Children())

	d.DetachChild("vda1")
	assert.Equal(t, []string{"vda2"}, d.Children())
	d.DetachChild("nope")
	assert.Equal(t, []string{"vda2"}, d.Children())
}
