package compressor

import (
	"archive/tar"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
)

// tarCompressor archives members with archive/tar, per-entry deflated with
// compress/flate (§4.3: "tar (the latter with per-entry deflate)").
type tarCompressor struct{}

func (t *tarCompressor) Compress(w io.Writer, members []Member) error {
	tw := tar.NewWriter(w)

	for _, m := range members {
		raw, err := io.ReadAll(m.Data)
		if err != nil {
			return fmt.Errorf("compressor: tar read member %q: %w", m.Name, err)
		}

		var deflated bytes.Buffer
		fw, err := flate.NewWriter(&deflated, flate.DefaultCompression)
		if err != nil {
			return fmt.Errorf("compressor: tar create deflate writer: %w", err)
		}
		if _, err := fw.Write(raw); err != nil {
			return fmt.Errorf("compressor: tar deflate member %q: %w", m.Name, err)
		}
		if err := fw.Close(); err != nil {
			return fmt.Errorf("compressor: tar finalize deflate member %q: %w", m.Name, err)
		}

		if err := tw.WriteHeader(&tar.Header{
			Name: m.Name,
			Size: int64(deflated.Len()),
			Mode: 0o644,
		}); err != nil {
			return fmt.Errorf("compressor: tar write header %q: %w", m.Name, err)
		}
		if _, err := tw.Write(deflated.Bytes()); err != nil {
			return fmt.Errorf("compressor: tar write member %q: %w", m.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("compressor: tar finalize: %w", err)
	}
	return nil
}

func (t *tarCompressor) Decompress(r io.Reader) ([]Member, error) {
	tr := tar.NewReader(r)

	var members []Member
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ErrCorruptArchive
		}

		deflated := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, deflated); err != nil {
			return nil, ErrCorruptArchive
		}

		fr := flate.NewReader(bytes.NewReader(deflated))
		raw, err := io.ReadAll(fr)
		_ = fr.Close()
		if err != nil {
			return nil, ErrCorruptArchive
		}

		members = append(members, Member{Name: hdr.Name, Data: bytes.NewReader(raw)})
	}

	return members, nil
}
