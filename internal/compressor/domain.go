// Package compressor implements the zip/tar archiving variants BackyDB
// applies to a backup's artifacts before encryption (§4.3). Archives are
// reversible: decompressing a compressed artifact set reproduces the exact
// bytes that were compressed.
package compressor

import (
	"io"

	"github.com/allisson/backydb/internal/errors"
)

// Type selects the archive format §6's compression_type configuration key
// recognizes.
type Type string

const (
	Zip Type = "zip"
	Tar Type = "tar"
)

// Member is one named byte stream to place in an archive: `<category>.sql`
// per enabled category when multiple_files is true, or `dump.sql` for the
// single-file layout (§4.3).
type Member struct {
	Name string
	Data io.Reader
}

// Compressor archives a set of Members into w, or reverses the process,
// reading archive members back out in the order Decompress chooses to
// yield them (callers that need the original dependency-rank order look
// members up by name).
type Compressor interface {
	Compress(w io.Writer, members []Member) error
	Decompress(r io.Reader) ([]Member, error)
}

// New returns the Compressor for t.
func New(t Type) (Compressor, error) {
	switch t {
	case Zip:
		return &zipCompressor{}, nil
	case Tar:
		return &tarCompressor{}, nil
	default:
		return nil, ErrFormatUnsupported
	}
}

var (
	// ErrFormatUnsupported indicates an unrecognized compression_type value.
	ErrFormatUnsupported = errors.Wrap(errors.ErrCompressionFormatUnsupported, "compressor: unsupported format")
	// ErrCorruptArchive indicates an archive could not be parsed, or an
	// entry's declared size did not match its actual content.
	ErrCorruptArchive = errors.Wrap(errors.ErrCorruptArchive, "compressor: corrupt archive")
)
