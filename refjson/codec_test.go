package refjson_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/pkg/store"
	"github.com/bizref/bizref/refjson"
)

var noteType = reflect.TypeOf(Note{})

func TestMarshal_reference_by_default(t *testing.T) {
	c := newCodec(nil)

	data, err := c.Marshal(Holder{Invoice: newNote(123, "Hello World")})
	require.NoError(t, err)
	assert.Equal(t, `{"invoice":"123"}`, string(data))
}

func TestMarshal_full_entity(t *testing.T) {
	c := newCodec(nil)
	note := newNote(123, "Hello World")

	data, err := c.WithDefaultMode(models.Full).Marshal(note)
	require.NoError(t, err)
	assert.Equal(t, `{"businessId":"123","content":"Hello World"}`, string(data))

	data, err = c.Marshal(FullHolder{Invoice: note})
	require.NoError(t, err)
	assert.Equal(t, `{"invoice":{"businessId":"123","content":"Hello World"}}`, string(data))
}

func TestMarshal_root_entity_follows_default(t *testing.T) {
	c := newCodec(nil)

	data, err := c.Marshal(newNote(-5, "x"))
	require.NoError(t, err)
	assert.Equal(t, `"-5"`, string(data))
}

func TestMarshal_nil_entity_is_null_in_every_mode(t *testing.T) {
	c := newCodec(nil)

	for _, mode := range []models.ReferenceMode{models.Reference, models.Full} {
		data, err := c.WithDefaultMode(mode).Marshal(Holder{})
		require.NoError(t, err)
		assert.Equal(t, `{"invoice":null}`, string(data), mode.String())
	}

	data, err := c.Marshal(FullHolder{})
	require.NoError(t, err)
	assert.Equal(t, `{"invoice":null}`, string(data))
}

func TestMarshal_shadowed_field_uses_default(t *testing.T) {
	c := newCodec(nil)
	cust := newCustomer(7, "Ada")

	data, err := c.Marshal(SpecialOrder{Customer: cust})
	require.NoError(t, err)
	assert.Equal(t, `{"customer":"7"}`, string(data))

	data, err = c.Marshal(BaseOrder{Customer: cust})
	require.NoError(t, err)
	assert.Equal(t, `{"customer":{"businessId":"7","name":"Ada"}}`, string(data))
}

func TestMarshal_bidirectional_graph(t *testing.T) {
	c := newCodec(nil)
	cust := newCustomer(7, "Ada")
	cust.Invoices = []*Invoice{
		{Base: models.NewBase[Invoice](1), Content: "first", Customer: cust},
		{Base: models.NewBase[Invoice](2), Content: "second", Customer: cust},
	}

	data, err := c.Marshal(CustomerView{Customer: cust})
	require.NoError(t, err)
	assert.Equal(t,
		`{"customer":{"businessId":"7","name":"Ada","invoices":[`+
			`{"businessId":"1","content":"first","customer":"7"},`+
			`{"businessId":"2","content":"second","customer":"7"}]}}`,
		string(data))
}

func TestMarshal_collections(t *testing.T) {
	c := newCodec(nil)
	a, b := newNote(1, "a"), newNote(2, "b")

	data, err := c.Marshal([]*Note{a, nil, b})
	require.NoError(t, err)
	assert.Equal(t, `["1",null,"2"]`, string(data))

	data, err = c.Marshal(Batch{Notes: []*Note{a, b}})
	require.NoError(t, err)
	assert.Equal(t, `{"notes":[{"businessId":"1","content":"a"},{"businessId":"2","content":"b"}]}`, string(data))

	data, err = c.Marshal(map[string]*Note{"z": b, "a": a})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","z":"2"}`, string(data))
}

func TestMarshal_entity_map_keys_are_references(t *testing.T) {
	c := newCodec(nil).WithDefaultMode(models.Full)
	counts := map[*Note]int{newNote(12, "x"): 3, newNote(4, "y"): 1}

	data, err := c.Marshal(counts)
	require.NoError(t, err)
	assert.Equal(t, `{"12":3,"4":1}`, string(data))
}

func TestMarshal_interface_map_keys(t *testing.T) {
	c := newCodec(nil)

	data, err := c.Marshal(map[models.Entity]int{newNote(12, "x"): 3, newNote(4, "y"): 1})
	require.NoError(t, err)
	assert.Equal(t, `{"12":3,"4":1}`, string(data))

	data, err = c.Marshal(map[any]int{newNote(12, "x"): 3, "plain": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"12":3,"plain":1}`, string(data))

	_, err = c.Marshal(map[models.Entity]int{(*Note)(nil): 1})
	assert.ErrorIs(t, err, constants.ErrNotEntity)
}

func TestUnmarshal_interface_map_keys_need_concrete_type(t *testing.T) {
	loader := newRecordingLoader(newNote(12, "x"))
	c := newCodec(loader)

	var counts map[models.Entity]int
	err := c.Unmarshal([]byte(`{"12":3}`), &counts)
	assert.ErrorIs(t, err, constants.ErrNotEntity)
	assert.Empty(t, loader.Calls())

	require.NoError(t, c.Unmarshal([]byte(`{}`), &counts))
	assert.Empty(t, counts)
}

func TestUnmarshal_reference_calls_loader_once(t *testing.T) {
	note := newNote(123, "Hello World")
	loader := newRecordingLoader(note)
	c := newCodec(loader)

	var got *Note
	require.NoError(t, c.Unmarshal([]byte(`"123"`), &got))

	assert.Same(t, note, got)
	assert.Equal(t, []loadCall{{ID: 123, Type: noteType}}, loader.Calls())
}

func TestUnmarshal_not_found_propagates_unchanged(t *testing.T) {
	notFound := store.NotFound(noteType, 123)
	loader := newRecordingLoader()
	loader.err = notFound
	c := newCodec(loader)

	var h Holder
	err := c.Unmarshal([]byte(`{"invoice":"123"}`), &h)
	assert.Same(t, notFound, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, loader.Calls(), 1)
}

func TestUnmarshal_ambiguous_propagates(t *testing.T) {
	loader := newRecordingLoader()
	loader.err = store.Ambiguous(noteType, 5)
	c := newCodec(loader)

	var h Holder
	err := c.Unmarshal([]byte(`{"invoice":"5"}`), &h)
	assert.ErrorIs(t, err, store.ErrAmbiguousResult)
}

func TestUnmarshal_reference_tokens(t *testing.T) {
	note := newNote(123, "x")
	negative := newNote(-9, "y")

	tests := []struct {
		name    string
		input   string
		want    *Note
		calls   int
		wantErr error
	}{
		{name: "string", input: `{"invoice":"123"}`, want: note, calls: 1},
		{name: "number", input: `{"invoice":123}`, want: note, calls: 1},
		{name: "negative", input: `{"invoice":"-9"}`, want: negative, calls: 1},
		{name: "null", input: `{"invoice":null}`, want: nil},
		{name: "absent", input: `{}`, want: nil},
		{name: "garbage", input: `{"invoice":"12x"}`, wantErr: constants.ErrParse},
		{name: "too long", input: `{"invoice":"123456789012345678901"}`, wantErr: constants.ErrParse},
		{name: "overflow", input: `{"invoice":"9223372036854775808"}`, wantErr: constants.ErrParse},
		{name: "float", input: `{"invoice":1.5}`, wantErr: constants.ErrParse},
		{name: "object", input: `{"invoice":{"businessId":"123"}}`, wantErr: constants.ErrUnexpectedJSONType},
		{name: "trailing text", input: `{"invoice":"1"} garbage`, wantErr: constants.ErrSyntax},
		{name: "extra brace", input: `{"invoice":"1"}}`, wantErr: constants.ErrSyntax},
		{name: "trailing comma", input: `{"invoice":"1",}`, wantErr: constants.ErrSyntax},
		{name: "empty", input: ``, wantErr: constants.ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newRecordingLoader(note, negative)
			c := newCodec(loader)

			var h Holder
			err := c.Unmarshal([]byte(tt.input), &h)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, loader.Calls())
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, h.Invoice)
			assert.Len(t, loader.Calls(), tt.calls)
		})
	}
}

func TestUnmarshal_parse_error_is_typed(t *testing.T) {
	c := newCodec(newRecordingLoader())

	var h Holder
	err := c.Unmarshal([]byte(`{"invoice":"abc"}`), &h)

	var parseErr *models.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "abc", parseErr.Text)
}

func TestUnmarshal_without_loader(t *testing.T) {
	c := newCodec(nil)

	var h Holder
	err := c.Unmarshal([]byte(`{"invoice":"1"}`), &h)
	assert.ErrorIs(t, err, constants.ErrNoLoader)

	// Nothing to load, nothing to fail.
	require.NoError(t, c.Unmarshal([]byte(`{"invoice":null}`), &h))
}

func TestUnmarshal_full_entity(t *testing.T) {
	loader := newRecordingLoader()
	c := newCodec(loader)

	var h FullHolder
	require.NoError(t, c.Unmarshal([]byte(`{"invoice":{"businessId":"123","content":"Hello World"}}`), &h))

	require.NotNil(t, h.Invoice)
	assert.Equal(t, models.ID(123), h.Invoice.EntityID())
	assert.Equal(t, "Hello World", h.Invoice.Content)
	assert.True(t, h.Invoice.IsNew())
	assert.Empty(t, loader.Calls())
}

func TestUnmarshal_loader_value_into_pointer(t *testing.T) {
	value := Note{Base: models.NewBase[Note](3), Content: "by value"}
	c := newCodec(store.LoaderFunc(func(_ context.Context, id models.ID, typ reflect.Type) (models.Entity, error) {
		return value, nil
	}))

	var h Holder
	require.NoError(t, c.Unmarshal([]byte(`{"invoice":"3"}`), &h))
	require.NotNil(t, h.Invoice)
	assert.Equal(t, "by value", h.Invoice.Content)

	type valueHolder struct {
		Invoice Note `json:"invoice"`
	}
	var vh valueHolder
	c = newCodec(newRecordingLoader(newNote(4, "from pointer")))
	require.NoError(t, c.Unmarshal([]byte(`{"invoice":"4"}`), &vh))
	assert.Equal(t, "from pointer", vh.Invoice.Content)
}

func TestUnmarshal_loader_wrong_type(t *testing.T) {
	c := newCodec(store.LoaderFunc(func(_ context.Context, id models.ID, typ reflect.Type) (models.Entity, error) {
		return newCustomer(int64(id), "nope"), nil
	}))

	var h Holder
	err := c.Unmarshal([]byte(`{"invoice":"3"}`), &h)
	assert.ErrorIs(t, err, constants.ErrNotEntity)
}

func TestRoundTrip_reference_is_idempotent(t *testing.T) {
	note := newNote(123, "Hello World")
	c := newCodec(newRecordingLoader(note))

	docs := []string{
		`{"invoice":"123"}`,
		`{"invoice":null}`,
	}
	for _, doc := range docs {
		var h Holder
		require.NoError(t, c.Unmarshal([]byte(doc), &h))
		data, err := c.Marshal(h)
		require.NoError(t, err)
		assert.Equal(t, doc, string(data))
	}
}

func TestRoundTrip_view_with_back_references(t *testing.T) {
	stored := newCustomer(7, "Ada")
	loader := newRecordingLoader(stored)
	c := newCodec(loader)

	doc := `{"customer":{"businessId":"7","name":"Ada","invoices":[{"businessId":"1","content":"first","customer":"7"}]}}`

	var view CustomerView
	require.NoError(t, c.Unmarshal([]byte(doc), &view))

	want := CustomerView{Customer: &Customer{
		Base: models.NewBase[Customer](7),
		Name: "Ada",
		Invoices: []*Invoice{
			{Base: models.NewBase[Invoice](1), Content: "first", Customer: stored},
		},
	}}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Errorf("decoded view mismatch (-want +got):\n%s", diff)
	}
	assert.Same(t, stored, view.Customer.Invoices[0].Customer)
	assert.Equal(t, []loadCall{{ID: 7, Type: reflect.TypeOf(Customer{})}}, loader.Calls())

	data, err := c.Marshal(view)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
}

func TestRoundTrip_entity_map_keys(t *testing.T) {
	a, b := newNote(12, "x"), newNote(4, "y")
	loader := newRecordingLoader(a, b)
	c := newCodec(loader)

	var counts map[*Note]int
	require.NoError(t, c.Unmarshal([]byte(`{"12":3,"4":1}`), &counts))
	assert.Equal(t, map[*Note]int{a: 3, b: 1}, counts)

	err := c.Unmarshal([]byte(`{"x":1}`), &counts)
	assert.ErrorIs(t, err, constants.ErrParse)
}

func TestUnwrapped_reference(t *testing.T) {
	cust := newCustomer(7, "Ada")
	loader := newRecordingLoader(cust)
	c := newCodec(loader)

	data, err := c.Marshal(Shipment{Label: "box", Owner: cust})
	require.NoError(t, err)
	assert.Equal(t, `{"label":"box","businessId":"7"}`, string(data))

	var s Shipment
	require.NoError(t, c.Unmarshal(data, &s))
	assert.Equal(t, "box", s.Label)
	assert.Same(t, cust, s.Owner)

	data, err = c.Marshal(Shipment{Label: "empty"})
	require.NoError(t, err)
	assert.Equal(t, `{"label":"empty"}`, string(data))

	s = Shipment{}
	require.NoError(t, c.Unmarshal(data, &s))
	assert.Nil(t, s.Owner)

	require.NoError(t, c.Unmarshal([]byte(`{"label":"x","businessId":null}`), &s))
	assert.Nil(t, s.Owner)
	assert.Len(t, loader.Calls(), 1)
}

func TestUnwrapped_full_with_prefix(t *testing.T) {
	loader := newRecordingLoader()
	c := newCodec(loader)
	cust := newCustomer(7, "Ada")

	data, err := c.Marshal(Parcel{Label: "box", Owner: cust})
	require.NoError(t, err)
	assert.Equal(t, `{"label":"box","owner_businessId":"7","owner_name":"Ada"}`, string(data))

	var p Parcel
	require.NoError(t, c.Unmarshal(data, &p))
	require.NotNil(t, p.Owner)
	assert.Equal(t, models.ID(7), p.Owner.EntityID())
	assert.Equal(t, "Ada", p.Owner.Name)

	p = Parcel{}
	require.NoError(t, c.Unmarshal([]byte(`{"label":"box"}`), &p))
	assert.Nil(t, p.Owner)
	assert.Empty(t, loader.Calls())
}

type plain struct {
	Name     string            `json:"name"`
	Count    int               `json:"count,omitempty"`
	Ratio    float64           `json:"ratio"`
	Tags     []string          `json:"tags"`
	Attrs    map[string]any    `json:"attrs"`
	Blob     []byte            `json:"blob"`
	Nested   *plainNested      `json:"nested"`
	Skipped  string            `json:"-"`
	ByID     map[int]string    `json:"byId"`
	Untagged bool
	plainEmbedded
}

type plainNested struct {
	Mode models.ReferenceMode `json:"mode"`
}

type plainEmbedded struct {
	Inline string `json:"inline"`
}

func TestStructural_matches_go_json(t *testing.T) {
	v := plain{
		Name:          "n",
		Ratio:         0.5,
		Tags:          []string{"a", "b"},
		Attrs:         map[string]any{"k": "v", "n": 1.5, "list": []any{true, nil}},
		Blob:          []byte("bytes"),
		Nested:        &plainNested{Mode: models.Full},
		Skipped:       "hidden",
		ByID:          map[int]string{2: "two", 10: "ten"},
		Untagged:      true,
		plainEmbedded: plainEmbedded{Inline: "in"},
	}

	data, err := newCodec(nil).Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name":"n","ratio":0.5,"tags":["a","b"],
		"attrs":{"k":"v","list":[true,null],"n":1.5},
		"blob":"Ynl0ZXM=","nested":{"mode":"full"},
		"byId":{"10":"ten","2":"two"},"Untagged":true,"inline":"in"
	}`, string(data))

	var back plain
	require.NoError(t, newCodec(nil).Unmarshal(data, &back))
	v.Skipped = ""
	if diff := cmp.Diff(v, back, cmp.AllowUnexported(plain{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_case_insensitive_members(t *testing.T) {
	c := newCodec(nil).WithDefaultMode(models.Full)

	var n Note
	require.NoError(t, c.Unmarshal([]byte(`{"BusinessId":"8","CONTENT":"loud"}`), &n))
	assert.Equal(t, models.ID(8), n.EntityID())
	assert.Equal(t, "loud", n.Content)
}

func TestUnmarshal_type_mismatch_reports_path(t *testing.T) {
	c := newCodec(nil)

	var p plain
	err := c.Unmarshal([]byte(`{"nested":{"mode":"sometimes"}}`), &p)
	var pathErr *refjson.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "$.nested.mode", pathErr.Path)
	assert.ErrorIs(t, err, constants.ErrInvalidMode)

	err = c.Unmarshal([]byte(`{"tags":"not a list"}`), &p)
	assert.ErrorIs(t, err, constants.ErrUnexpectedJSONType)
}

func TestMarshal_unsupported(t *testing.T) {
	_, err := newCodec(nil).Marshal(map[string]any{"ch": make(chan int)})
	var unsupported *refjson.UnsupportedTypeError
	assert.True(t, errors.As(err, &unsupported))
}

func TestMarshal_invalid_tag(t *testing.T) {
	type broken struct {
		Note *Note `json:"note" ref:"sometimes"`
	}
	c := newCodec(nil)

	_, err := c.Marshal(broken{})
	assert.ErrorIs(t, err, constants.ErrInvalidMode)

	// The failed build is remembered.
	_, err = c.Marshal(broken{})
	assert.ErrorIs(t, err, constants.ErrInvalidMode)
}

func TestUnmarshal_requires_pointer(t *testing.T) {
	c := newCodec(nil)
	var h Holder
	assert.ErrorIs(t, c.Unmarshal([]byte(`{}`), h), constants.ErrInvalidUnmarshal)
	assert.ErrorIs(t, c.Unmarshal([]byte(`{}`), (*Holder)(nil)), constants.ErrInvalidUnmarshal)
}

func TestEncoderDecoder_stream(t *testing.T) {
	note := newNote(1, "x")
	c := newCodec(newRecordingLoader(note))

	var buf bytes.Buffer
	enc := c.NewEncoder(&buf)
	require.NoError(t, enc.Encode(Holder{Invoice: note}))
	require.NoError(t, enc.Encode(Holder{}))
	assert.Equal(t, "{\"invoice\":\"1\"}\n{\"invoice\":null}\n", buf.String())

	dec := c.NewDecoder(strings.NewReader(buf.String()))
	var first, second Holder
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Same(t, note, first.Invoice)
	assert.Nil(t, second.Invoice)
}

func TestCodec_concurrent_walks(t *testing.T) {
	cust := newCustomer(7, "Ada")
	cust.Invoices = []*Invoice{{Base: models.NewBase[Invoice](1), Content: "c", Customer: cust}}
	c := newCodec(newRecordingLoader(cust))

	want, err := c.Marshal(CustomerView{Customer: cust})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := c.Marshal(CustomerView{Customer: cust})
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(want, data) {
				errs <- errors.New("mismatched output: " + string(data))
				return
			}
			var view CustomerView
			if err := c.Unmarshal(data, &view); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
