package exporter

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"
)

// blobKey marks a BLOB value in JSON output: {"$blob":"<base64>"}.
const blobKey = "$blob"

// JSONEncoder writes JSON Lines, one object per row with keys in column
// order. Repeated column names (SELECT a, a) get a ":N" suffix.
type JSONEncoder struct {
	out  *bufio.Writer
	keys [][]byte
	line bytes.Buffer
	err  error
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{out: bufio.NewWriterSize(w, 64*1024)}
}

// WriteHeader fixes the object keys; nothing is written.
func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.keys = objectKeys(columns)
	return nil
}

func (e *JSONEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	e.line.Reset()
	e.line.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			e.line.WriteByte(',')
		}
		e.line.Write(e.key(i))
		e.line.WriteByte(':')
		if err := writeJSONValue(&e.line, v); err != nil {
			e.err = err
			return err
		}
	}
	e.line.WriteString("}\n")

	if _, err := e.out.Write(e.line.Bytes()); err != nil {
		e.err = err
	}
	return e.err
}

func (e *JSONEncoder) key(i int) []byte {
	if i < len(e.keys) {
		return e.keys[i]
	}
	k, _ := json.Marshal("column_" + strconv.Itoa(i))
	return k
}

func (e *JSONEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.out.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}

// objectKeys encodes column names as JSON strings, making repeats unique.
func objectKeys(columns []string) [][]byte {
	seen := make(map[string]bool, len(columns))
	keys := make([][]byte, len(columns))
	for i, name := range columns {
		k := name
		for n := 1; seen[k]; n++ {
			k = name + ":" + strconv.Itoa(n)
		}
		seen[k] = true
		keys[i], _ = json.Marshal(k)
	}
	return keys
}

func writeJSONValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case []byte:
		buf.WriteString(`{"` + blobKey + `":"`)
		buf.WriteString(base64.StdEncoding.EncodeToString(val))
		buf.WriteString(`"}`)
		return nil
	case time.Time:
		v = val.Format(time.RFC3339Nano)
	case float64:
		// SQLite REAL can hold infinities; JSON numbers cannot.
		if math.IsInf(val, 0) || math.IsNaN(val) {
			v = strconv.FormatFloat(val, 'g', -1, 64)
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
