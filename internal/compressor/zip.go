package compressor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// zipCompressor archives members using archive/zip's deflate method.
type zipCompressor struct{}

func (z *zipCompressor) Compress(w io.Writer, members []Member) error {
	zw := zip.NewWriter(w)

	for _, m := range members {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:   m.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("compressor: zip create entry %q: %w", m.Name, err)
		}
		if _, err := io.Copy(entry, m.Data); err != nil {
			return fmt.Errorf("compressor: zip write entry %q: %w", m.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressor: zip finalize: %w", err)
	}
	return nil
}

func (z *zipCompressor) Decompress(r io.Reader) ([]Member, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compressor: read archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, ErrCorruptArchive
	}

	members := make([]Member, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, ErrCorruptArchive
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, ErrCorruptArchive
		}
		members = append(members, Member{Name: f.Name, Data: bytes.NewReader(data)})
	}

	return members, nil
}
