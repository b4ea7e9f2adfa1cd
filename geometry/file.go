package geometry

import (
	"io"
	"os"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/encoding/json"
)

const compressedExt = ".zst"

// Load reads a JSON dataset from the given file. Files ending with .zst are
// decompressed with zstd. Missing cell normals are derived from cell
// centroids and missing neighbor sets are left empty.
func Load(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("opening dataset failed").
			WithType(ErrTypeDatasetIO).
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, compressedExt) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.New("creating zstd reader failed").
				WithType(ErrTypeDatasetIO).
				WithTag("path", path).
				Wrap(err)
		}
		defer zr.Close()
		r = zr
	}

	var d Data
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, errors.New("decoding dataset failed").
			WithType(ErrTypeInvalidDataset).
			WithTag("path", path).
			Wrap(err)
	}

	if len(d.CellNeighbors) == 0 {
		d.CellNeighbors = make([][]int, len(d.Cells))
	}
	if len(d.CellNormals) == 0 && d.validateIndices() == nil {
		d.CellNormals = d.CellCentroids()
		for i := range d.CellNormals {
			d.CellNormals[i].NormalizeInPlace()
		}
	}

	if err := d.Validate(); err != nil {
		return nil, errors.New("invalid dataset").
			WithType(ErrTypeInvalidDataset).
			WithTag("path", path).
			Wrap(err)
	}
	return &d, nil
}

// Save writes the dataset to the given file, compressing it with zstd when
// the path ends with .zst.
func Save(path string, d *Data) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New("creating dataset file failed").
			WithType(ErrTypeDatasetIO).
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.HasSuffix(path, compressedExt) {
		if zw, err = zstd.NewWriter(f); err != nil {
			return errors.New("creating zstd writer failed").
				WithType(ErrTypeDatasetIO).
				WithTag("path", path).
				Wrap(err)
		}
		w = zw
	}

	if err := json.NewEncoder(w).Encode(d); err != nil {
		if zw != nil {
			zw.Close()
		}
		return errors.New("encoding dataset failed").
			WithType(ErrTypeDatasetIO).
			WithTag("path", path).
			Wrap(err)
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return errors.New("flushing zstd writer failed").
				WithType(ErrTypeDatasetIO).
				WithTag("path", path).
				Wrap(err)
		}
	}
	return f.Close()
}
