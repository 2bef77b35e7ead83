package refjson

import (
	"bytes"

	"github.com/goccy/go-json"
)

// writer emits JSON tokens and takes care of separators. Members of an object
// may come from several structs when fields are unwrapped, so the writer, not
// the caller, tracks whether a comma is due.
type writer struct {
	buf bytes.Buffer
	// frames holds, per open object or array, whether it has a member yet.
	frames   []bool
	afterKey bool
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *writer) beforeValue() {
	if w.afterKey {
		w.afterKey = false
		return
	}
	if n := len(w.frames); n > 0 {
		if w.frames[n-1] {
			w.buf.WriteByte(',')
		}
		w.frames[n-1] = true
	}
}

func (w *writer) BeginObject() {
	w.beforeValue()
	w.buf.WriteByte('{')
	w.frames = append(w.frames, false)
}

func (w *writer) EndObject() {
	w.frames = w.frames[:len(w.frames)-1]
	w.buf.WriteByte('}')
}

func (w *writer) BeginArray() {
	w.beforeValue()
	w.buf.WriteByte('[')
	w.frames = append(w.frames, false)
}

func (w *writer) EndArray() {
	w.frames = w.frames[:len(w.frames)-1]
	w.buf.WriteByte(']')
}

func (w *writer) Key(name string) error {
	w.beforeValue()
	if err := w.quote(name); err != nil {
		return err
	}
	w.buf.WriteByte(':')
	w.afterKey = true
	return nil
}

func (w *writer) String(s string) error {
	w.beforeValue()
	return w.quote(s)
}

// Raw writes an already encoded value.
func (w *writer) Raw(data []byte) {
	w.beforeValue()
	w.buf.Write(data)
}

func (w *writer) Null() {
	w.Raw([]byte("null"))
}

func (w *writer) quote(s string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	w.buf.Write(data)
	return nil
}
