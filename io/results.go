// Package io reads and writes collision grid result files.
//
// The on-disk format is a fixed-size binary header followed by the model
// parameters and the dense C[m,n;j,k] arrays. All fields are little
// endian; the header carries an endianness flag and its own size so
// external tools can sanity-check files without this package.
package io

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"unsafe"

	"github.com/JulianSchoen/WallGo/collision"
)

var end = binary.LittleEndian

const formatVersion = 1

// Upper bound on the basis size accepted when reading, so a corrupt header
// cannot trigger an enormous allocation.
const maxBasisSize = 1 << 10

var ErrBadFormat = fmt.Errorf("io: not a collision grid file")

type GridHeader struct {
	Type TypeInfo
	Grid GridInfo
}

type TypeInfo struct {
	Endianness    int64
	HeaderSize    int64
	FormatVersion int64
}

type GridInfo struct {
	BasisSize  int64
	ParamCount int64
	PairNames  [2][64]byte
}

type paramEntry struct {
	Name  [64]byte
	Value float64
}

func nameBytes(s string) [64]byte {
	var b [64]byte
	copy(b[:], s)
	return b
}

func nameString(b [64]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// ResultFileName returns the canonical file name for one pair's grid,
// collisions_<a>_<b>_N<basisSize>.dat.
func ResultFileName(pair [2]string, basisSize int) string {
	return fmt.Sprintf("collisions_%s_%s_N%d.dat", pair[0], pair[1], basisSize)
}

// WriteGrid writes one results grid to wr.
func WriteGrid(wr io.Writer, grid *collision.ResultsGrid) error {
	pair := grid.Pair()

	hd := GridHeader{}
	hd.Type.Endianness = -1
	hd.Type.HeaderSize = int64(unsafe.Sizeof(hd))
	hd.Type.FormatVersion = formatVersion
	hd.Grid.BasisSize = int64(grid.BasisSize())
	hd.Grid.ParamCount = int64(len(grid.Params()))
	hd.Grid.PairNames[0] = nameBytes(pair[0])
	hd.Grid.PairNames[1] = nameBytes(pair[1])

	if err := binary.Write(wr, end, &hd); err != nil {
		return err
	}

	params := grid.Params()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	// Deterministic files for identical grids.
	sort.Strings(names)
	for _, name := range names {
		entry := paramEntry{nameBytes(name), params[name]}
		if err := binary.Write(wr, end, &entry); err != nil {
			return err
		}
	}

	if err := binary.Write(wr, end, grid.Values()); err != nil {
		return err
	}
	if err := binary.Write(wr, end, grid.Errors()); err != nil {
		return err
	}
	return binary.Write(wr, end, grid.ConvergedFlags())
}

// ReadGrid reads one results grid from rd.
func ReadGrid(rd io.Reader) (*collision.ResultsGrid, error) {
	hd := GridHeader{}
	if err := binary.Read(rd, end, &hd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if hd.Type.Endianness != -1 ||
		hd.Type.HeaderSize != int64(unsafe.Sizeof(hd)) {
		return nil, ErrBadFormat
	}
	if hd.Type.FormatVersion != formatVersion {
		return nil, fmt.Errorf("io: unsupported format version %d",
			hd.Type.FormatVersion)
	}
	if hd.Grid.BasisSize < 1 || hd.Grid.BasisSize > maxBasisSize {
		return nil, fmt.Errorf("io: implausible basis size %d",
			hd.Grid.BasisSize)
	}

	params := make(map[string]float64, hd.Grid.ParamCount)
	for i := int64(0); i < hd.Grid.ParamCount; i++ {
		entry := paramEntry{}
		if err := binary.Read(rd, end, &entry); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
		}
		params[nameString(entry.Name)] = entry.Value
	}

	basisSize := int(hd.Grid.BasisSize)
	n := basisSize * basisSize * basisSize * basisSize
	values := make([]float64, n)
	errors := make([]float64, n)
	conv := make([]bool, n)
	if err := binary.Read(rd, end, values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if err := binary.Read(rd, end, errors); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if err := binary.Read(rd, end, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}

	pair := [2]string{
		nameString(hd.Grid.PairNames[0]),
		nameString(hd.Grid.PairNames[1]),
	}
	return collision.RestoreData(basisSize, pair, params, values, errors, conv)
}

// WriteResultsGrid writes grid to a file at path, truncating any existing
// file.
func WriteResultsGrid(path string, grid *collision.ResultsGrid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteGrid(f, grid); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadResultsGrid reads a grid from the file at path.
func ReadResultsGrid(path string) (*collision.ResultsGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadGrid(f)
}
