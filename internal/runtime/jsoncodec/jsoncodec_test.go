package jsoncodec

import (
	"bytes"
	"reflect"
	"testing"
)

type orderPayload struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := orderPayload{ID: 42, Label: "zażółć gęślą jaźń ✓"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out orderPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}
}

func TestUnmarshalIntoAny(t *testing.T) {
	var out any
	if err := Unmarshal([]byte(`{"nested":{"list":[1,"two"]}}`), &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	want := map[string]any{"nested": map[string]any{"list": []any{float64(1), "two"}}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected value %#v", out)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"id":1}`)) {
		t.Fatal("expected valid document")
	}
	if Valid([]byte(`{"id":`)) {
		t.Fatal("expected invalid document")
	}
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := orderPayload{ID: 7, Label: "stream"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded orderPayload
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}
