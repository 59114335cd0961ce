package csv

import (
	"bufio"
	"bytes"
	"io"
)

// streamingRewriter is an io.Reader that performs a rolling find/replace of
// pat with repl without buffering the entire stream. To match sequences that
// span chunk boundaries it retains the last len(pat)-1 bytes (carry) of each
// processed block and prepends them to the next one.
type streamingRewriter struct {
	br    *bufio.Reader
	pat   []byte
	repl  []byte
	carry []byte
	buf   bytes.Buffer
	chunk []byte
	eof   bool
}

func newStreamingRewriter(r io.Reader, pat, repl []byte) *streamingRewriter {
	return &streamingRewriter{
		br:    bufio.NewReaderSize(r, 64*1024),
		pat:   pat,
		repl:  repl,
		carry: make([]byte, 0, max(len(pat)-1, 0)),
		chunk: make([]byte, 64*1024),
	}
}

// Read implements io.Reader. On EOF the remaining carry is flushed.
func (sr *streamingRewriter) Read(p []byte) (int, error) {
	for {
		if sr.buf.Len() > 0 {
			return sr.buf.Read(p)
		}
		if sr.eof {
			return 0, io.EOF
		}

		n, rerr := sr.br.Read(sr.chunk)
		if n > 0 {
			block := make([]byte, 0, len(sr.carry)+n)
			block = append(block, sr.carry...)
			block = append(block, sr.chunk[:n]...)

			if len(sr.pat) > 0 && !bytes.Equal(sr.pat, sr.repl) {
				block = bytes.ReplaceAll(block, sr.pat, sr.repl)
			}

			k := max(len(sr.pat)-1, 0)
			if len(block) > k {
				sr.buf.Write(block[:len(block)-k])
				sr.carry = append(sr.carry[:0], block[len(block)-k:]...)
			} else {
				sr.carry = append(sr.carry[:0], block...)
			}
		}

		switch {
		case rerr == io.EOF:
			sr.buf.Write(sr.carry)
			sr.carry = sr.carry[:0]
			sr.eof = true
		case rerr != nil:
			return 0, rerr
		}
	}
}

// wrapReplacements chains one rewriter per pattern. Patterns are applied in
// sorted key order so results do not depend on map iteration.
func wrapReplacements(r io.Reader, keys []string, repl map[string]string) io.Reader {
	for _, k := range keys {
		if k == "" {
			continue
		}
		r = newStreamingRewriter(r, []byte(k), []byte(repl[k]))
	}
	return r
}
