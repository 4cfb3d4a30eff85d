package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/metrics"
)

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// chunkReader streams src as a sequence of fixed-size chunks through a
// single reusable buffer, so memory stays at one chunk regardless of the
// file size.
type chunkReader struct {
	src     io.Reader
	buf     []byte
	pending []byte
	chunks  int
	err     error
	onChunk func(index, size int)
}

func newChunkReader(src io.Reader, size int, onChunk func(index, size int)) *chunkReader {
	return &chunkReader{src: src, buf: make([]byte, size), onChunk: onChunk}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		n, err := io.ReadFull(r.src, r.buf)
		if n > 0 {
			r.pending = r.buf[:n]
			if r.onChunk != nil {
				r.onChunk(r.chunks, n)
			}
			r.chunks++
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			r.err = io.EOF
		case err != nil:
			r.err = err
		}
		if len(r.pending) == 0 {
			return 0, r.err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Upload streams the file at path to the upload endpoint and returns the
// reference to pass to Submit. The body is sent with chunked transfer
// encoding, one chunk buffer at a time.
//
// A file that cannot be opened is a *FileError. A non-2xx response or a
// response without upload_url is an *UploadError. Only dial/DNS failures
// are retried, re-opening the file for each attempt.
func (c *Client) Upload(ctx context.Context, path string) (RemoteReference, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &FileError{Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &FileError{Path: path, Err: errors.New("is a directory")}
	}

	log.Info().
		Str("path", path).
		Int64("size_bytes", info.Size()).
		Int("chunk_size", c.chunkSize).
		Msg("Uploading audio to AssemblyAI")

	start := time.Now()
	var ref RemoteReference
	var chunks int

	op := func() error {
		f, err := os.Open(path)
		if err != nil {
			return backoff.Permanent(&FileError{Path: path, Err: err})
		}
		defer f.Close()

		body := newChunkReader(f, c.chunkSize, c.onChunk)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
		if err != nil {
			return backoff.Permanent(&UploadError{Err: fmt.Errorf("build request: %w", err)})
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		code, respBody, err := c.do(req)
		if err != nil {
			if isTransportFailure(err) {
				return err
			}
			return backoff.Permanent(&UploadError{StatusCode: code, Err: err})
		}
		if !isSuccess(code) {
			return backoff.Permanent(&UploadError{StatusCode: code, Message: apiMessage(respBody)})
		}

		var resp uploadResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return backoff.Permanent(&UploadError{StatusCode: code, Message: "invalid JSON response", Err: err})
		}
		if resp.UploadURL == "" {
			return backoff.Permanent(&UploadError{StatusCode: code, Message: "response missing upload_url"})
		}

		ref = RemoteReference(resp.UploadURL)
		chunks = body.chunks
		return nil
	}

	if err := c.retry(ctx, "upload", op); err != nil {
		var fileErr *FileError
		var uploadErr *UploadError
		if errors.As(err, &fileErr) || errors.As(err, &uploadErr) {
			return "", err
		}
		return "", &UploadError{Err: err}
	}

	elapsed := time.Since(start)
	log.Info().
		Int("chunks", chunks).
		Dur("duration", elapsed).
		Msg("Audio uploaded")

	metrics.New().
		Dimension("Stage", "upload").
		Duration("UploadMs", elapsed).
		Metric("UploadBytes", float64(info.Size()), metrics.UnitBytes).
		Metric("UploadChunks", float64(chunks), metrics.UnitCount).
		Flush()

	return ref, nil
}
