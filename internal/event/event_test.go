package event

import "testing"

func TestGetNestedPath(t *testing.T) {
	e := New(map[string]any{
		"winlog": map[string]any{
			"event_id": float64(1234),
			"event_data": map[string]any{
				"param1": "hello",
			},
		},
	})

	v, ok := e.Get("winlog.event_data.param1")
	if !ok || v != "hello" {
		t.Fatalf("Get() = (%v, %v), want (hello, true)", v, ok)
	}
}

func TestGetMissingPath(t *testing.T) {
	e := New(map[string]any{"a": map[string]any{"b": "c"}})
	if _, ok := e.Get("a.missing"); ok {
		t.Error("expected missing path to report absent")
	}
	if _, ok := e.Get("a.b.c"); ok {
		t.Error("expected descending into a scalar to report absent")
	}
}

func TestGetStringNullIsAbsent(t *testing.T) {
	e := New(map[string]any{"message": nil})
	if _, ok := e.GetString("message"); ok {
		t.Error("expected null field to report absent for GetString")
	}
}

func TestGetStringWrongTypeIsAbsent(t *testing.T) {
	e := New(map[string]any{"count": float64(3)})
	if _, ok := e.GetString("count"); ok {
		t.Error("expected non-string field to report absent for GetString")
	}
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	e := New(map[string]any{})
	if ok := e.Set("a.b.c", "value"); !ok {
		t.Fatal("Set() = false, want true")
	}
	got, ok := e.GetString("a.b.c")
	if !ok || got != "value" {
		t.Errorf("Get() after Set = (%v, %v), want (value, true)", got, ok)
	}
}

func TestSetFailsThroughScalarSegment(t *testing.T) {
	e := New(map[string]any{"a": "scalar"})
	if ok := e.Set("a.b", "value"); ok {
		t.Error("expected Set through a scalar segment to fail")
	}
}

func TestSetOverwritesExistingLeaf(t *testing.T) {
	e := New(map[string]any{"a": "old"})
	e.Set("a", "new")
	got, _ := e.GetString("a")
	if got != "new" {
		t.Errorf("a = %q, want new", got)
	}
}

func TestHasDistinguishesAbsentFromNull(t *testing.T) {
	e := New(map[string]any{"present_null": nil})
	if !e.Has("present_null") {
		t.Error("present-but-null path should report Has() = true")
	}
	if e.Has("absent") {
		t.Error("absent path should report Has() = false")
	}
}

func TestTagsAndHasTag(t *testing.T) {
	e := New(map[string]any{"tags": []any{"clusterable", "dev"}})
	tags := e.Tags()
	if len(tags) != 2 || tags[0] != "clusterable" || tags[1] != "dev" {
		t.Errorf("Tags() = %v", tags)
	}
	if !e.HasTag("dev") {
		t.Error("expected HasTag(dev) = true")
	}
	if e.HasTag("missing") {
		t.Error("expected HasTag(missing) = false")
	}
}

func TestTagsAbsentIsNil(t *testing.T) {
	e := New(map[string]any{})
	if tags := e.Tags(); tags != nil {
		t.Errorf("Tags() = %v, want nil", tags)
	}
}

func TestParseRoundTrip(t *testing.T) {
	e, err := Parse([]byte(`{"event_id": 1234, "message": "hi"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, ok := e.Get("event_id")
	if !ok || v != float64(1234) {
		t.Errorf("event_id = (%v, %v)", v, ok)
	}
}

func TestNewNilRootIsUsable(t *testing.T) {
	e := New(nil)
	if ok := e.Set("x", "y"); !ok {
		t.Fatal("Set on nil-backed Event should succeed")
	}
}
