package textdiff

import (
	"bytes"
	"fmt"
	"strconv"
)

const header = "dirpatch-diff 1\n"

// Encode serializes ops. Each op is a line "=N", "-N" or "+B"; an insert is
// followed by its B raw bytes.
func Encode(ops []Op) []byte {
	var buf bytes.Buffer
	buf.WriteString(header)
	for _, op := range ops {
		buf.WriteByte(byte(op.Kind))
		switch op.Kind {
		case OpInsert:
			buf.WriteString(strconv.Itoa(len(op.Data)))
			buf.WriteByte('\n')
			buf.Write(op.Data)
		default:
			buf.WriteString(strconv.Itoa(op.N))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) ([]Op, error) {
	if !bytes.HasPrefix(data, []byte(header)) {
		return nil, fmt.Errorf("decode diff: missing header")
	}
	rest := data[len(header):]
	var ops []Op
	for len(rest) > 0 {
		kind := OpKind(rest[0])
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return nil, fmt.Errorf("decode diff: truncated op")
		}
		n, err := strconv.Atoi(string(rest[1:nl]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("decode diff: bad count %q", rest[1:nl])
		}
		rest = rest[nl+1:]

		switch kind {
		case OpKeep, OpDrop:
			ops = append(ops, Op{Kind: kind, N: n})
		case OpInsert:
			if n > len(rest) {
				return nil, fmt.Errorf("decode diff: insert of %d bytes overruns payload", n)
			}
			ops = append(ops, Op{Kind: OpInsert, Data: rest[:n:n]})
			rest = rest[n:]
		default:
			return nil, fmt.Errorf("decode diff: unknown op %q", byte(kind))
		}
	}
	return ops, nil
}
