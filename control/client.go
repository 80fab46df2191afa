package control

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNoResponse = errors.New("no response")

// RoundTrip sends req on w, closes w, and returns the first response read
// from r.
func RoundTrip(w io.WriteCloser, r io.Reader, req Request) (Response, error) {
	if _, err := io.Copy(w, strings.NewReader(FormatRequest(req))); err != nil {
		w.Close()
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	if err := w.Close(); err != nil {
		return Response{}, err
	}
	sc := NewScanner(r)
	if sc.Scan() {
		return sc.Response(), nil
	}
	if err := sc.Err(); err != nil {
		return Response{}, err
	}
	return Response{}, ErrNoResponse
}
