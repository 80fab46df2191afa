package control

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// MaxLineBytes bounds one line of a control stream.
const MaxLineBytes = 1024 * 1024

// Line is one line of a control stream without its line ending. When the
// line exceeded the limit, Text holds its first bytes and Truncated is set.
type Line struct {
	Text      string
	Truncated bool
}

type lineResult struct {
	line Line
	err  error
}

// ReadLines calls fn for every line of r until end of stream, returning
// nil, or until ctx is done, returning ctx.Err(). Lines longer than limit
// are truncated, never fatal. fn runs on the caller's goroutine.
//
// Reads happen on a separate goroutine; after ctx is done it is left
// blocked on r until r returns.
func ReadLines(ctx context.Context, r io.Reader, limit int, fn func(Line)) error {
	if limit <= 0 {
		limit = MaxLineBytes
	}
	lines := make(chan lineResult)
	go func() {
		br := bufio.NewReader(r)
		for {
			line, err := readLine(br, limit)
			select {
			case lines <- lineResult{line, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-lines:
			if errors.Is(res.err, io.EOF) {
				return nil
			}
			if res.err != nil {
				return res.err
			}
			fn(res.line)
		}
	}
}

func readLine(br *bufio.Reader, limit int) (Line, error) {
	var buf []byte
	truncated, seen := false, false
	for {
		frag, err := br.ReadSlice('\n')
		seen = seen || len(frag) > 0
		if err == nil {
			frag = frag[:len(frag)-1]
		}
		if room := limit - len(buf); len(frag) > room {
			buf = append(buf, frag[:room]...)
			truncated = true
		} else {
			buf = append(buf, frag...)
		}
		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && seen:
			// last line without a line ending
		default:
			return Line{}, err
		}
		if !truncated && len(buf) > 0 && buf[len(buf)-1] == '\r' {
			buf = buf[:len(buf)-1]
		}
		return Line{Text: string(buf), Truncated: truncated}, nil
	}
}
