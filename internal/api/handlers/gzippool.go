package handlers

import (
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// gzipWriterPool reuses klauspost/compress gzip.Writer values across SSE
// streams, since a chat-completions stream can emit hundreds of small
// frames and allocating a fresh compressor per connection adds up under
// load.
var gzipWriterPool = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

func acceptsGzip(acceptEncoding string) bool {
	return strings.Contains(acceptEncoding, "gzip")
}

func getGzipWriter(w io.Writer) *gzip.Writer {
	gw := gzipWriterPool.Get().(*gzip.Writer)
	gw.Reset(w)
	return gw
}

func putGzipWriter(gw *gzip.Writer) {
	_ = gw.Close()
	gzipWriterPool.Put(gw)
}
