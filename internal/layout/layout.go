// Package layout reads and writes disk layout documents and turns them
// into live geometry objects.
//
// A layout document describes one disk and its partitions, with sizes
// either as plain byte counts or as unit strings like "6 MiB". TOML is the
// primary format, JSON is supported for machine-generated layouts. Decoding
// is strict: unknown keys are an error, so typos in hand-written layouts
// do not silently disappear.
package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/disklayout/internal/datasizes"
	"github.com/osbuild/disklayout/internal/device"
	"github.com/osbuild/disklayout/internal/disk"
)

// Document is the on-file form of a disk layout.
type Document struct {
	Disk       DiskConfig        `toml:"disk" json:"disk"`
	Partitions []PartitionConfig `toml:"partition" json:"partitions"`
}

// DiskConfig describes the disk-level geometry.
type DiskConfig struct {
	Path       string         `toml:"path" json:"path"`
	Size       datasizes.Size `toml:"size" json:"size"`
	SectorSize uint64         `toml:"sector_size,omitempty" json:"sector_size,omitempty"`
	Grain      datasizes.Size `toml:"grain,omitempty" json:"grain,omitempty"`
	Label      string         `toml:"label" json:"label"`
}

// PartitionConfig describes one partition table entry. Start and End are
// sector indices, End inclusive, matching how partition tables themselves
// store geometry.
type PartitionConfig struct {
	Start  uint64        `toml:"start" json:"start"`
	End    uint64        `toml:"end" json:"end"`
	Type   string        `toml:"type,omitempty" json:"type,omitempty"`
	UUID   string        `toml:"uuid,omitempty" json:"uuid,omitempty"`
	Format *FormatConfig `toml:"format,omitempty" json:"format,omitempty"`
}

// FormatConfig describes the payload of a partition for sizing purposes.
type FormatConfig struct {
	MinSize   datasizes.Size `toml:"min_size,omitempty" json:"min_size,omitempty"`
	Resizable bool           `toml:"resizable,omitempty" json:"resizable,omitempty"`
}

// Load reads a layout document from the given file. The format is chosen
// by file extension: ".json" is decoded as JSON, everything else as TOML.
func Load(path string) (*Document, error) {
	var doc Document

	if filepath.Ext(path) == ".json" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading layout %q: %w", path, err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding layout %q: %w", path, err)
		}
		return &doc, nil
	}

	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, fmt.Errorf("decoding layout %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decoding layout %q: unknown key %q", path, undecoded[0].String())
	}
	return &doc, nil
}

// Save writes a layout document to the given file, as JSON when the file
// name ends in ".json" and as TOML otherwise.
func Save(path string, doc *Document) error {
	var buf bytes.Buffer

	if filepath.Ext(path) == ".json" {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding layout %q: %w", path, err)
		}
	} else {
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("encoding layout %q: %w", path, err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing layout %q: %w", path, err)
	}
	return nil
}

// Realize builds the disk and its partition devices from a document.
// Partitions are created extended first, then primaries, then logicals, so
// document order does not matter. Devices are created as existing and get
// bound to their table entries; every partition that carries a format
// yields a device. Missing partition UUIDs are generated on GPT disks,
// mirroring what the table would get on commit.
func Realize(doc *Document) (*disk.Disk, []*device.PartitionDevice, error) {
	cfg := doc.Disk

	sectorSize := cfg.SectorSize
	if sectorSize == 0 {
		sectorSize = disk.DefaultSectorSize
	}
	if !cfg.Size.IsSectorMultiple(sectorSize) {
		return nil, nil, fmt.Errorf("disk %q: size %s is not a multiple of the %d byte sector size",
			cfg.Path, cfg.Size, sectorSize)
	}

	grain := uint64(disk.DefaultGrainSectors)
	if cfg.Grain != 0 {
		if !cfg.Grain.IsSectorMultiple(sectorSize) {
			return nil, nil, fmt.Errorf("disk %q: grain %s is not a multiple of the %d byte sector size",
				cfg.Path, cfg.Grain, sectorSize)
		}
		grain = cfg.Grain.Sectors(sectorSize)
	}

	label, err := disk.NewLabelType(cfg.Label)
	if err != nil {
		return nil, nil, fmt.Errorf("disk %q: %w", cfg.Path, err)
	}

	d, err := disk.New(cfg.Path, cfg.Size.Sectors(sectorSize), sectorSize, grain, label)
	if err != nil {
		return nil, nil, err
	}

	// extended entries have to exist before their logicals
	order := make([]int, len(doc.Partitions))
	for i := range order {
		order[i] = i
	}
	rank := map[string]int{"extended": 0, "": 1, "primary": 1, "logical": 2}
	sort.SliceStable(order, func(i, j int) bool {
		return rank[doc.Partitions[order[i]].Type] < rank[doc.Partitions[order[j]].Type]
	})

	var devices []*device.PartitionDevice
	for _, idx := range order {
		pcfg := doc.Partitions[idx]

		typ := disk.TYPE_PRIMARY
		if pcfg.Type != "" {
			typ, err = disk.NewPartitionType(pcfg.Type)
			if err != nil {
				return nil, nil, fmt.Errorf("disk %q: %w", cfg.Path, err)
			}
		}

		part, err := d.AddPartition(pcfg.Start, pcfg.End, typ)
		if err != nil {
			return nil, nil, err
		}
		part.UUID = pcfg.UUID
		if part.UUID == "" && label == disk.LABEL_GPT {
			part.UUID = uuid.NewString()
		}

		format := device.FormatSpec{OnDisk: true}
		if pcfg.Format != nil {
			format.MinSize = pcfg.Format.MinSize
			format.CanResize = pcfg.Format.Resizable
		}

		dev, err := device.New(d.PartitionNode(part), d, device.Existing(), device.WithFormat(format))
		if err != nil {
			return nil, nil, err
		}
		devices = append(devices, dev)

		logrus.Debugf("layout: realized %s [%d, %d] as %q", part.Type, part.Start, part.End, dev.Name())
	}

	return d, devices, nil
}

// Snapshot converts live geometry back into a document, preserving the
// formats of the given devices. The inverse of Realize up to partition
// ordering, which is normalized to start-sector order.
func Snapshot(d *disk.Disk, devices []*device.PartitionDevice) *Document {
	formats := make(map[int]*FormatConfig)
	for _, dev := range devices {
		part := dev.Partition()
		if part == nil {
			continue
		}
		f := dev.Format()
		formats[part.ID] = &FormatConfig{
			MinSize:   f.MinInstanceSize(),
			Resizable: f.Resizable(),
		}
	}

	doc := &Document{
		Disk: DiskConfig{
			Path:       d.Path,
			Size:       datasizes.FromSectors(d.Length, d.SectorSize),
			SectorSize: d.SectorSize,
			Grain:      datasizes.Size(d.GrainBytes()),
			Label:      d.Label.String(),
		},
	}
	for _, part := range d.Partitions() {
		doc.Partitions = append(doc.Partitions, PartitionConfig{
			Start:  part.Start,
			End:    part.End,
			Type:   part.Type.String(),
			UUID:   part.UUID,
			Format: formats[part.ID],
		})
	}
	return doc
}
