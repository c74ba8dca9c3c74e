package faissDB

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const (
	metaFile    = "meta.json"
	vectorsFile = "vectors.bin"
	magic       = uint32(0x464c4154)
	version     = uint32(1)
)

// save writes meta.json and vectors.bin through temp files and renames.
func (c *collection) save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	c.Tombstones = c.Tombstones[:0]
	for pos := range c.tombstones {
		c.Tombstones = append(c.Tombstones, pos)
	}
	sort.Ints(c.Tombstones)

	meta, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, metaFile), func(w io.Writer) error {
		_, err := w.Write(meta)
		return err
	}); err != nil {
		return err
	}

	if err := writeAtomic(filepath.Join(dir, vectorsFile), c.writeVectors); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *collection) writeVectors(w io.Writer) error {
	header := []uint32{magic, version, uint32(len(c.vectors)), uint32(c.Dimensions)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, v := range c.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func load(dir string) (*collection, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, err
	}
	c := &collection{}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", metaFile, err)
	}
	if c.Records == nil {
		c.Records = make(map[string]*entry)
	}

	f, err := os.Open(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	header := make([]uint32, 4)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("reading %s header: %w", vectorsFile, err)
	}
	if header[0] != magic || header[1] != version {
		return nil, fmt.Errorf("%s has an unknown format", vectorsFile)
	}
	count, dims := int(header[2]), int(header[3])
	if dims != c.Dimensions {
		return nil, fmt.Errorf("%s has %d dimensions, collection has %d", vectorsFile, dims, c.Dimensions)
	}

	c.vectors = make([][]float32, count)
	for i := range c.vectors {
		v := make([]float32, dims)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("reading vector %d: %w", i, err)
		}
		c.vectors[i] = v
	}

	c.owners = make([]string, count)
	for id, e := range c.Records {
		if e.Position < 0 || e.Position >= count {
			return nil, fmt.Errorf("record %s points outside the index", id)
		}
		c.owners[e.Position] = id
	}
	c.tombstones = make(map[int]struct{}, len(c.Tombstones))
	for _, pos := range c.Tombstones {
		c.tombstones[pos] = struct{}{}
	}
	return c, nil
}
