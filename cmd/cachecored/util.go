package main

import (
	"bufio"
	"bytes"
	"net/http"
	"net/textproto"
)

// parseRawHeader parses a MIME-formatted header blob, as produced by
// http.Header.Write, back into an http.Header.
func parseRawHeader(raw []byte) (http.Header, error) {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	mh, err := tp.ReadMIMEHeader()
	if err != nil && len(mh) == 0 {
		return nil, err
	}
	return http.Header(mh), nil
}
