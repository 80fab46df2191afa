package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Scanner extracts framed responses from a stream, skipping any text that
// is not inside a frame.
type Scanner struct {
	s    *bufio.Scanner
	resp Response
	err  error
}

func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	s.Split(splitFrames)
	return &Scanner{s: s}
}

// Scan advances to the next response. It returns false at end of stream
// or on error; Err tells which.
func (sc *Scanner) Scan() bool {
	if sc.err != nil || !sc.s.Scan() {
		return false
	}
	var resp Response
	if err := json.Unmarshal(sc.s.Bytes(), &resp); err != nil {
		sc.err = fmt.Errorf("decode response: %w", err)
		return false
	}
	sc.resp = resp
	return true
}

func (sc *Scanner) Response() Response {
	return sc.resp
}

func (sc *Scanner) Err() error {
	if sc.err != nil {
		return sc.err
	}
	return sc.s.Err()
}

// splitFrames yields the trimmed payload between each pair of sentinels.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	begin := bytes.Index(data, []byte(BeginResult))
	if begin < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a tail that may hold a partial sentinel
		if keep := len(BeginResult) - 1; len(data) > keep {
			return len(data) - keep, nil, nil
		}
		return 0, nil, nil
	}
	start := begin + len(BeginResult)
	end := bytes.Index(data[start:], []byte(EndResult))
	if end < 0 {
		if atEOF {
			return len(data), nil, io.ErrUnexpectedEOF
		}
		return begin, nil, nil
	}
	payload := bytes.TrimSpace(data[start : start+end])
	return start + end + len(EndResult), payload, nil
}
