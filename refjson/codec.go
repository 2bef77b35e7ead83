// Package refjson encodes and decodes graphs of entities as JSON.
//
// Every entity reached during a walk is written either in full, as an object of
// its own fields, or as a reference: the bare business id as a JSON string. The
// choice is made per position by a [scope.Resolver], so a fully written invoice
// can carry its customer as a reference and a bidirectional graph does not
// recurse forever under the default REFERENCE mode. Decoding a reference goes
// through a [store.Loader].
//
//	type Invoice struct {
//		models.Base[Invoice]
//		Content  string    `json:"content"`
//		Customer *Customer `json:"customer"`
//	}
//
//	type InvoiceResponse struct {
//		Invoice *Invoice `json:"invoice" ref:"full"`
//	}
//
//	// {"invoice":{"businessId":"123","content":"Hello World","customer":"77"}}
//
// Entities used as map keys are always written as references. Graphs annotated
// FULL end to end are not checked for cycles.
package refjson

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/bizref/bizref/internal/codec"
	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/pkg/store"
	"github.com/bizref/bizref/scope"
)

// Config configures a Codec. Zero fields are filled in by New.
type Config struct {
	// DefaultMode applies where no annotation decides. REFERENCE unless set.
	DefaultMode models.ReferenceMode

	// Loader resolves references on decode. Decoding a reference without one
	// fails with constants.ErrNoLoader.
	Loader store.Loader

	Introspector scope.Introspector
	Resolver     *scope.Resolver
	Types        *TypeCache

	Logger zerolog.Logger
}

// NewConfig returns a Config with REFERENCE as default mode and tag based
// annotations.
func NewConfig() *Config {
	in := scope.NewTagIntrospector()
	return &Config{
		DefaultMode:  models.Reference,
		Introspector: in,
		Resolver:     scope.NewResolver(in),
		Types:        NewTypeCache(in),
		Logger:       zerolog.Nop(),
	}
}

// Codec is safe for concurrent use. It keeps no state between calls apart from
// its type cache.
type Codec struct {
	defaultMode models.ReferenceMode
	loader      store.Loader
	in          scope.Introspector
	resolver    *scope.Resolver
	types       *TypeCache
	log         zerolog.Logger
}

func New(cfg *Config) *Codec {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := &Codec{
		defaultMode: cfg.DefaultMode,
		loader:      cfg.Loader,
		in:          cfg.Introspector,
		resolver:    cfg.Resolver,
		types:       cfg.Types,
		log:         cfg.Logger,
	}
	if !c.defaultMode.Valid() {
		c.defaultMode = models.Reference
	}
	if c.in == nil {
		c.in = scope.NewTagIntrospector(scope.WithIntrospectorLogger(c.log))
	}
	if c.resolver == nil {
		c.resolver = scope.NewResolver(c.in, scope.WithResolverLogger(c.log))
	}
	if c.types == nil {
		c.types = NewTypeCache(c.in)
	}
	return c
}

// WithDefaultMode returns a codec sharing c's configuration and caches but
// falling back to mode.
func (c *Codec) WithDefaultMode(mode models.ReferenceMode) *Codec {
	cp := *c
	if mode.Valid() {
		cp.defaultMode = mode
	}
	return &cp
}

// WithLoader returns a codec sharing c's configuration and caches but resolving
// references through l.
func (c *Codec) WithLoader(l store.Loader) *Codec {
	cp := *c
	cp.loader = l
	return &cp
}

func (c *Codec) DefaultMode() models.ReferenceMode {
	return c.defaultMode
}

func (c *Codec) Marshal(v any) ([]byte, error) {
	return c.MarshalContext(context.Background(), v)
}

func (c *Codec) MarshalContext(ctx context.Context, v any) ([]byte, error) {
	e := &encoder{
		codec: c,
		ctx:   ctx,
		w:     newWriter(),
	}
	if err := e.encodeValue(reflect.ValueOf(v), scope.Root()); err != nil {
		return nil, err
	}
	return e.w.Bytes(), nil
}

func (c *Codec) Unmarshal(data []byte, v any) error {
	return c.UnmarshalContext(context.Background(), data, v)
}

// UnmarshalContext decodes data into v, which must be a non-nil pointer. ctx is
// passed to the loader for every reference.
func (c *Codec) UnmarshalContext(ctx context.Context, data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w, got %T", constants.ErrInvalidUnmarshal, v)
	}

	if !json.Valid(data) {
		return fmt.Errorf("refjson: %w", constants.ErrSyntax)
	}

	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return fmt.Errorf("refjson: %w", err)
	}

	d := &decoder{
		codec: c,
		ctx:   ctx,
	}
	return d.decodeValue(rv.Elem(), value, dataType, scope.Root())
}

type Encoder struct {
	codec *Codec
	w     io.Writer
}

// Encode writes the encoding of v followed by a newline.
func (enc *Encoder) Encode(v any) error {
	data, err := enc.codec.Marshal(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.Grow(len(data) + 1)
	buf.Write(data)
	buf.WriteByte('\n')
	_, err = enc.w.Write(buf.Bytes())
	return err
}

type Decoder struct {
	codec *Codec
	ctx   context.Context
	dec   *json.Decoder
}

// Decode reads the next JSON value from the stream and decodes it into v.
func (dec *Decoder) Decode(v any) error {
	var raw json.RawMessage
	if err := dec.dec.Decode(&raw); err != nil {
		return err
	}
	return dec.codec.UnmarshalContext(dec.ctx, raw, v)
}

func (c *Codec) NewEncoder(w io.Writer) codec.Encoder {
	return &Encoder{codec: c, w: w}
}

func (c *Codec) NewDecoder(r io.Reader) codec.Decoder {
	return c.NewDecoderContext(context.Background(), r)
}

// NewDecoderContext is NewDecoder with a context for the loader.
func (c *Codec) NewDecoderContext(ctx context.Context, r io.Reader) *Decoder {
	return &Decoder{codec: c, ctx: ctx, dec: json.NewDecoder(r)}
}

var _ codec.Codec = (*Codec)(nil)
