package dotslash

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic     = []byte{0x1f, 0x8b}
	zstdMagic     = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic       = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zipMagic      = []byte{'P', 'K', 0x03, 0x04}
	zipEmptyMagic = []byte{'P', 'K', 0x05, 0x06} // archive with no entries
)

const (
	tarBlockSize   = 512
	tarMagicOffset = 257
)

// ProbeFormat sniffs the packaging format from the leading bytes of an
// artifact. Compressed streams are partially decompressed to tell a
// compressed tarball from a single compressed file. Content that matches no
// known magic is reported as FormatNone.
func ProbeFormat(r io.Reader) (Format, error) {
	br := bufio.NewReaderSize(r, tarBlockSize*2)
	head, err := br.Peek(tarBlockSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return FormatNone, fmt.Errorf("read header: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return FormatNone, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		return pickTar(zr, FormatTarGz, FormatGz)

	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return FormatNone, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		return pickTar(zr, FormatTarZst, FormatZst)

	case bytes.HasPrefix(head, xzMagic):
		zr, err := xz.NewReader(br)
		if err != nil {
			return FormatNone, fmt.Errorf("open xz stream: %w", err)
		}
		return pickTar(zr, FormatTarXz, FormatXz)

	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmptyMagic):
		return FormatZip, nil

	case isTarHeader(head):
		return FormatTar, nil
	}

	return FormatNone, nil
}

// pickTar reads the first decompressed block and returns tarFormat when it
// is a tar header, plainFormat otherwise.
func pickTar(r io.Reader, tarFormat, plainFormat Format) (Format, error) {
	block := make([]byte, tarBlockSize)
	n, err := io.ReadFull(r, block)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatNone, fmt.Errorf("decompress header: %w", err)
	}
	if isTarHeader(block[:n]) {
		return tarFormat, nil
	}
	return plainFormat, nil
}

// isTarHeader checks for the POSIX "ustar" magic. GNU tar writes
// "ustar  \x00", which shares the prefix.
func isTarHeader(block []byte) bool {
	if len(block) < tarMagicOffset+5 {
		return false
	}
	return string(block[tarMagicOffset:tarMagicOffset+5]) == "ustar"
}
