package dora

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
)

// ErrEmptyStream is returned by UnmarshalArray when the IPC stream holds no
// record batch.
var ErrEmptyStream = errors.New("dora: empty arrow stream")

// dataField is the column name used for single-array IPC streams.
const dataField = "data"

// MarshalArray encodes arr as an Arrow IPC stream holding one record batch
// with a single column. A nil array encodes to nil.
func MarshalArray(arr arrow.Array) ([]byte, error) {
	if arr == nil {
		return nil, nil
	}
	schema := arrow.NewSchema([]arrow.Field{
		{Name: dataField, Type: arr.DataType(), Nullable: true},
	}, nil)
	rec := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("dora: write arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("dora: close arrow writer: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalArray decodes a stream produced by MarshalArray. Empty input
// decodes to a nil array.
func UnmarshalArray(data []byte) (arrow.Array, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dora: open arrow stream: %w", err)
	}
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("dora: read arrow record: %w", err)
		}
		return nil, ErrEmptyStream
	}
	rec := r.Record()
	if rec.NumCols() != 1 {
		return nil, fmt.Errorf("dora: expected 1 column, got %d", rec.NumCols())
	}
	col := rec.Column(0)
	col.Retain()
	return col, nil
}
