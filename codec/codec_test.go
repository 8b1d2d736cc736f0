package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type profile struct {
	ID    int       `json:"id" msgpack:"id" cbor:"id"`
	Name  string    `json:"name" msgpack:"name" cbor:"name"`
	Since time.Time `json:"since" msgpack:"since" cbor:"since"`
}

func TestTypedRoundTrip(t *testing.T) {
	in := profile{ID: 7, Name: "Ada", Since: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	codecs := map[string]Codec[profile]{
		"json":    JSON[profile]{},
		"msgpack": Msgpack[profile]{},
		"cbor":    MustCBOR[profile](true),
	}
	for name, c := range codecs {
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if out.ID != in.ID || out.Name != in.Name || !out.Since.Equal(in.Since) {
			t.Fatalf("%s: got %+v want %+v", name, out, in)
		}
	}
}

func TestUnserializableValuesFailToEncode(t *testing.T) {
	bad := []any{func() {}, make(chan int), map[string]any{"f": func() {}}}
	codecs := map[string]Codec[any]{
		"json":    JSON[any]{},
		"msgpack": Msgpack[any]{},
		"cbor":    MustCBOR[any](false),
	}
	for name, c := range codecs {
		for _, v := range bad {
			if _, err := c.Encode(v); err == nil {
				t.Fatalf("%s: expected encode error for %T", name, v)
			}
		}
	}
}

func TestCBORAnyDecodesStringMaps(t *testing.T) {
	c := MustCBOR[any](false)
	b, err := c.Encode(map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(map[string]any); !ok {
		t.Fatalf("expected map[string]any, got %T", v)
	}
}

func TestLimitCodec(t *testing.T) {
	c := LimitCodec[string]{Inner: String{}, MaxEncode: 4, MaxDecode: 3}

	if _, err := c.Encode("abcd"); err != nil {
		t.Fatalf("at limit should pass: %v", err)
	}
	if _, err := c.Encode("abcde"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge on encode, got %v", err)
	}
	if _, err := c.Decode([]byte("abcd")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge on decode, got %v", err)
	}
	if v, err := c.Decode([]byte("abc")); err != nil || v != "abc" {
		t.Fatalf("decode under limit: %q %v", v, err)
	}

	unlimited := LimitCodec[string]{Inner: String{}}
	if _, err := unlimited.Encode(strings.Repeat("x", MemcachedItemSize+1)); err != nil {
		t.Fatalf("disabled limit should pass: %v", err)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })

	b, err := c.Encode(wrapperspb.String("hello"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.GetValue() != "hello" {
		t.Fatalf("got %q", out.GetValue())
	}

	var nilMsg *wrapperspb.StringValue
	if _, err := c.Encode(nilMsg); err == nil {
		t.Fatal("expected error for nil message")
	}
}

func TestRawCodecs(t *testing.T) {
	b, _ := Bytes{}.Encode([]byte{1, 2})
	if len(b) != 2 {
		t.Fatalf("bytes codec changed input")
	}
	s, _ := String{}.Decode([]byte("42"))
	if s != "42" {
		t.Fatalf("string codec: %q", s)
	}
}
