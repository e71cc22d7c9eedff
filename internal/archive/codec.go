// Package archive implements the tarball codec (component H): packing and
// unpacking the USTAR-format archives the installer and build pipeline
// exchange, across the five compression codecs the tarball-name table in
// spec.md §6 enumerates. Grounded on the teacher's
// internal/common.getCompressor/getDecompressor dispatch (same switch
// shape, same per-format library choices for gzip/bzip2/xz) generalized
// with capability-set codec values instead of a type switch, fixing
// REDESIGN FLAG "Dynamic dispatch without a capability contract" (§9):
// every Codec is a concrete value satisfying the same small interface, so
// adding a sixth format means adding one Codec, not another branch
// scattered across callers.
package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/kissforge/kiss/internal/kconfig"
)

// Codec pairs a compression format's reader and writer constructors. Each
// value is stateless and safe for concurrent use.
type Codec interface {
	// Extension is the suffix a tarball name carries for this codec (gz,
	// bz2, lz4, xz, zst), matching spec.md §6's tarball naming table.
	Extension() string
	NewReader(r io.Reader) (io.ReadCloser, error)
	NewWriter(w io.Writer) (io.WriteCloser, error)
}

// CodecFor returns the Codec registered for a kconfig.Compression value.
func CodecFor(c kconfig.Compression) (Codec, error) {
	switch c {
	case kconfig.CompressionGzip:
		return gzipCodec{}, nil
	case kconfig.CompressionBzip2:
		return bzip2Codec{}, nil
	case kconfig.CompressionLZ4:
		return lz4Codec{}, nil
	case kconfig.CompressionXZ:
		return xzCodec{}, nil
	case kconfig.CompressionZstd:
		return zstdCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression codec: %q", c)
	}
}

// CodecForExtension maps a tarball's suffix (as produced by TarballName) back
// to its Codec, used when extracting a tarball whose compression is only
// known from its file name (a cached binary, a downloaded dependency).
func CodecForExtension(ext string) (Codec, error) {
	return CodecFor(kconfig.Compression(strings.TrimPrefix(ext, ".")))
}

// DetectCodec derives a Codec from a tarball's full file name by its
// trailing extension, mirroring pkg_is_binary_available's suffix match. An
// extension outside the five known codecs is not an error: it yields (nil,
// nil), signalling the caller to skip the file rather than abort, the way
// pkg_is_binary_available silently passes over a non-tarball directory
// entry instead of failing the whole scan.
func DetectCodec(name string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	codec, err := CodecForExtension(ext)
	if err != nil {
		return nil, nil
	}
	return codec, nil
}

type gzipCodec struct{}

func (gzipCodec) Extension() string { return "gz" }
func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return gr, nil
}
func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

type bzip2Codec struct{}

func (bzip2Codec) Extension() string { return "bz2" }
func (bzip2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	br, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(br), nil
}
func (bzip2Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return bzip2.NewWriter(w, nil)
}

type xzCodec struct{}

func (xzCodec) Extension() string { return "xz" }
func (xzCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}
func (xzCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}

type zstdCodec struct{}

func (zstdCodec) Extension() string { return "zst" }
func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}
func (zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

type lz4Codec struct{}

func (lz4Codec) Extension() string { return "lz4" }
func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
func (lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}
