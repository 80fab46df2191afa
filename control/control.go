// Package control implements the line protocol spoken on a container's
// control stream.
//
// Requests are "id;command" lines. Every response is a compact JSON object
// written between BeginResult and EndResult, so a reader can pick it out of
// a stream that carries arbitrary other text.
package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	BeginResult = "_BEGIN_RESULT_"
	EndResult   = "_END_RESULT_"
)

var ErrInvalidID = errors.New("invalid request id")

type Request struct {
	ID      int
	Command string
}

type Response struct {
	ID          int    `json:"id"`
	ReturnValue int    `json:"return_value"`
	Output      string `json:"output"`
}

// ParseRequest takes the first ';' field as id and the second as command.
// Anything after a second ';' is ignored.
func ParseRequest(line string) (Request, error) {
	fields := strings.SplitN(strings.TrimRight(line, "\r\n"), ";", 3)
	var req Request
	if len(fields) > 1 {
		req.Command = fields[1]
	}
	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return req, fmt.Errorf("%w: %q", ErrInvalidID, fields[0])
	}
	req.ID = id
	return req, nil
}

func FormatRequest(req Request) string {
	return strconv.Itoa(req.ID) + ";" + req.Command + "\n"
}

// WriteResponse writes exactly one framed response.
func WriteResponse(w io.Writer, resp Response) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return err
	}
	frame := make([]byte, 0, len(BeginResult)+body.Len()+len(EndResult))
	frame = append(frame, BeginResult...)
	frame = append(frame, bytes.TrimRight(body.Bytes(), "\n")...)
	frame = append(frame, EndResult...)
	_, err := w.Write(frame)
	return err
}
