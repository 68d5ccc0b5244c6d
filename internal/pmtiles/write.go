// Package pmtiles writes rendered layers as single-directory PMTiles v3
// archives. The wire format comes from github.com/protomaps/go-pmtiles;
// this package only lays tiles out and fills in the header.
package pmtiles

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/protomaps/go-pmtiles/pmtiles"
)

// Tile is one encoded tile addressed by z/x/y.
type Tile struct {
	Z    uint8
	X, Y uint32
	Data []byte // gzipped MVT
}

// Archive describes the archive written by Write.
type Archive struct {
	Name    string
	MinZoom uint8
	MaxZoom uint8
	// Bounds in WGS84 degrees as [minLon, minLat, maxLon, maxLat].
	Bounds [4]float64
}

// Write encodes tiles as a clustered PMTiles v3 archive with a single root
// directory. Tiles may be given in any order; a z/x/y given twice is an
// error.
func Write(w io.Writer, tiles []Tile, a Archive) error {
	if len(tiles) == 0 {
		return errors.New("no tiles to write")
	}

	entries, data, err := layout(tiles)
	if err != nil {
		return err
	}

	metadata, err := pmtiles.SerializeMetadata(a.metadata(), pmtiles.Gzip)
	if err != nil {
		return fmt.Errorf("serializing metadata: %w", err)
	}
	root := pmtiles.SerializeEntries(entries, pmtiles.Gzip)

	header := a.header()
	header.RootOffset = pmtiles.HeaderV3LenBytes
	header.RootLength = uint64(len(root))
	header.MetadataOffset = header.RootOffset + header.RootLength
	header.MetadataLength = uint64(len(metadata))
	header.TileDataOffset = header.MetadataOffset + header.MetadataLength
	header.TileDataLength = uint64(len(data))
	header.AddressedTilesCount = uint64(len(entries))
	header.TileEntriesCount = uint64(len(entries))
	header.TileContentsCount = uint64(len(entries))

	for _, part := range [][]byte{pmtiles.SerializeHeader(header), root, metadata, data} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// layout orders tiles by Hilbert tile ID and packs their bytes back to back.
func layout(tiles []Tile) ([]pmtiles.EntryV3, []byte, error) {
	entries := make([]pmtiles.EntryV3, len(tiles))
	order := make([]int, len(tiles))
	for i, t := range tiles {
		entries[i] = pmtiles.EntryV3{TileID: pmtiles.ZxyToID(t.Z, t.X, t.Y), RunLength: 1}
		order[i] = i
	}
	slices.SortFunc(order, func(i, j int) int {
		switch {
		case entries[i].TileID < entries[j].TileID:
			return -1
		case entries[i].TileID > entries[j].TileID:
			return 1
		}
		return 0
	})

	sorted := make([]pmtiles.EntryV3, 0, len(tiles))
	var buf bytes.Buffer
	for k, i := range order {
		e := entries[i]
		if k > 0 && sorted[k-1].TileID == e.TileID {
			t := tiles[i]
			return nil, nil, fmt.Errorf("tile %d/%d/%d given twice", t.Z, t.X, t.Y)
		}
		e.Offset = uint64(buf.Len())
		e.Length = uint32(len(tiles[i].Data))
		buf.Write(tiles[i].Data)
		sorted = append(sorted, e)
	}
	return sorted, buf.Bytes(), nil
}

func (a Archive) header() pmtiles.HeaderV3 {
	return pmtiles.HeaderV3{
		SpecVersion:         3,
		Clustered:           true,
		InternalCompression: pmtiles.Gzip,
		TileCompression:     pmtiles.Gzip,
		TileType:            pmtiles.Mvt,
		MinZoom:             a.MinZoom,
		MaxZoom:             a.MaxZoom,
		MinLonE7:            e7(a.Bounds[0]),
		MinLatE7:            e7(a.Bounds[1]),
		MaxLonE7:            e7(a.Bounds[2]),
		MaxLatE7:            e7(a.Bounds[3]),
		CenterZoom:          a.MinZoom,
		CenterLonE7:         e7((a.Bounds[0] + a.Bounds[2]) / 2),
		CenterLatE7:         e7((a.Bounds[1] + a.Bounds[3]) / 2),
	}
}

// metadata is the TileJSON-style document PMTiles readers expect.
func (a Archive) metadata() map[string]any {
	return map[string]any{
		"name":        a.Name,
		"format":      "pbf",
		"compression": "gzip",
		"minzoom":     a.MinZoom,
		"maxzoom":     a.MaxZoom,
		"bounds":      a.Bounds,
		"vector_layers": []map[string]any{
			{"id": a.Name, "minzoom": a.MinZoom, "maxzoom": a.MaxZoom},
		},
	}
}

func e7(deg float64) int32 {
	return int32(deg * 10000000)
}
