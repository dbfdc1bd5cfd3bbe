package content

import (
	"bytes"
	"fmt"
	"io"

	"topicmsg/internal/model"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// MaxDecompressionRatio bounds decompressed size to a multiple of the
// compressed size.
const MaxDecompressionRatio = 1000

func compress(c *model.EncodedContent, alg model.Compression) error {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch alg {
	case model.CompressionDeflate:
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return err
		}
		w = fw
	case model.CompressionGzip:
		w = gzip.NewWriter(&buf)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCompression, alg)
	}

	if _, err := w.Write(c.Content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	c.Content = buf.Bytes()
	c.Compression = &alg
	return nil
}

// decompress inflates c.Content in place and clears the compression marker.
func decompress(c *model.EncodedContent, ratio int) error {
	if c.Compression == nil {
		return nil
	}

	var r io.ReadCloser
	switch *c.Compression {
	case model.CompressionDeflate:
		r = flate.NewReader(bytes.NewReader(c.Content))
	case model.CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(c.Content))
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		r = gr
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCompression, *c.Compression)
	}
	defer r.Close()

	limit := int64(len(c.Content)) * int64(ratio)
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return fmt.Errorf("decompress %s: %w", *c.Compression, err)
	}
	if int64(len(out)) > limit {
		return fmt.Errorf("%w: limit %d bytes", ErrDecompressionLimit, limit)
	}

	c.Content = out
	c.Compression = nil
	return nil
}
