package codec

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/marksync/marksync/internal/domain"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	c := New(DefaultMaxEntries)

	nodes := []*domain.BookmarkNode{
		{ID: "1", Title: "GitHub - Where the world builds software", URL: "https://github.com", ParentID: "toolbar"},
		{ID: "2", Title: "GitHub - Where the world builds software", URL: "https://github.com/explore", ParentID: "toolbar"},
		{ID: "3", Title: "Short", URL: "https://s.io", Tags: []string{"reading-list", "reading-list"}},
	}

	payload, err := c.Compress(nodes)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	var restored []*domain.BookmarkNode
	if err := c.Decompress(payload, &restored); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}

	if !reflect.DeepEqual(nodes, restored) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored, nodes)
	}
}

func TestCompressBuildsDictionaryForRepeats(t *testing.T) {
	c := New(DefaultMaxEntries)

	repeated := "https://very-long-repeated.example.com/path"
	payload, err := c.Compress([]string{repeated, repeated, repeated})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	found := false
	for _, entry := range payload.Dictionary {
		if entry == repeated {
			found = true
		}
	}
	if !found {
		t.Errorf("Dictionary = %v, expected %q", payload.Dictionary, repeated)
	}

	// The repeated value must not appear literally in the data.
	if strings.Contains(string(payload.Data), repeated) {
		t.Errorf("Data still contains the literal string: %s", payload.Data)
	}
}

func TestCompressSkipsShortStrings(t *testing.T) {
	c := New(DefaultMaxEntries)

	payload, err := c.Compress([]string{"abc", "abc"})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if len(payload.Dictionary) != 0 {
		t.Errorf("Dictionary = %v, short strings should stay literal", payload.Dictionary)
	}
}

func TestCompressDictionaryCap(t *testing.T) {
	c := New(2)

	values := []string{
		"aaaaaaaaaaaaaaaa",
		"bbbbbbbbbbbb",
		"cccccccc",
		"dddddd",
	}
	payload, err := c.Compress(values)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if len(payload.Dictionary) != 2 {
		t.Errorf("Dictionary size = %v, want 2", len(payload.Dictionary))
	}

	// Longest strings win the cap.
	want := []string{"aaaaaaaaaaaaaaaa", "bbbbbbbbbbbb"}
	if !reflect.DeepEqual(payload.Dictionary, want) {
		t.Errorf("Dictionary = %v, want %v", payload.Dictionary, want)
	}

	var restored []string
	if err := c.Decompress(payload, &restored); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !reflect.DeepEqual(restored, values) {
		t.Errorf("round trip with cap mismatch: %v", restored)
	}
}

func TestCompressDictionaryDeterministic(t *testing.T) {
	c := New(DefaultMaxEntries)

	input := []string{"zzzzzzzz", "aaaaaaaa", "mmmmmmmm"}
	first, err := c.Compress(input)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	second, err := c.Compress(input)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	if !reflect.DeepEqual(first.Dictionary, second.Dictionary) {
		t.Errorf("dictionary not deterministic: %v vs %v", first.Dictionary, second.Dictionary)
	}
	// Equal lengths fall back to lexical order.
	want := []string{"aaaaaaaa", "mmmmmmmm", "zzzzzzzz"}
	if !reflect.DeepEqual(first.Dictionary, want) {
		t.Errorf("Dictionary = %v, want %v", first.Dictionary, want)
	}
}

func TestDecompressOutOfRangeReferenceStaysLiteral(t *testing.T) {
	c := New(DefaultMaxEntries)

	payload := &Payload{
		Dictionary: []string{"only-entry"},
		Data:       json.RawMessage(`["$0", "$7", "$-1", "$abc"]`),
	}

	var restored []string
	if err := c.Decompress(payload, &restored); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}

	want := []string{"only-entry", "$7", "$-1", "$abc"}
	if !reflect.DeepEqual(restored, want) {
		t.Errorf("Decompress() = %v, want %v", restored, want)
	}
}

func TestRoundTripLiteralSigilStrings(t *testing.T) {
	c := New(DefaultMaxEntries)

	// Values that look like references must survive the round trip.
	input := []string{"$2", "$0", "$not-a-ref", "plain"}
	payload, err := c.Compress(input)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	var restored []string
	if err := c.Decompress(payload, &restored); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !reflect.DeepEqual(restored, input) {
		t.Errorf("round trip = %v, want %v", restored, input)
	}
}

func TestDecompressNilPayload(t *testing.T) {
	c := New(DefaultMaxEntries)

	var out any
	if err := c.Decompress(nil, &out); err == nil {
		t.Error("Decompress(nil) should return an error")
	}
}

func TestCompressMapKeysUntouched(t *testing.T) {
	c := New(DefaultMaxEntries)

	input := map[string]string{
		"long-map-key-stays": "long-map-value-moves",
	}
	payload, err := c.Compress(input)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	if !strings.Contains(string(payload.Data), "long-map-key-stays") {
		t.Errorf("map key was substituted: %s", payload.Data)
	}

	var restored map[string]string
	if err := c.Decompress(payload, &restored); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !reflect.DeepEqual(restored, input) {
		t.Errorf("round trip = %v, want %v", restored, input)
	}
}
