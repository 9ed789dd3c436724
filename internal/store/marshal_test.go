package store

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestCompression_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("pack_json(Point) field x; "), 64)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			blob, err := compress(data, c)
			if err != nil {
				t.Fatalf("compress() failed: %v", err)
			}
			if c != CompressionNone && len(blob) >= len(data) {
				t.Errorf("compressed %d bytes into %d", len(data), len(blob))
			}
			back, err := decompress(blob, c, len(data))
			if err != nil {
				t.Fatalf("decompress() failed: %v", err)
			}
			if !bytes.Equal(back, data) {
				t.Error("round trip changed the data")
			}
		})
	}
}

func TestCompression_SizeMismatch(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 100)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		blob, err := compress(data, c)
		if err != nil {
			t.Fatalf("compress(%s) failed: %v", c, err)
		}
		if _, err := decompress(blob, c, len(data)+1); err == nil {
			t.Errorf("decompress(%s) with wrong size should fail", c)
		}
	}
}

func TestMarshalPlan_IncompressibleFallsBack(t *testing.T) {
	noise := make([]byte, 256)
	if _, err := rand.Read(noise); err != nil {
		t.Fatalf("rand: %v", err)
	}
	for _, c := range []Compression{CompressionLZ4, CompressionZstd} {
		if _, err := compress(noise, c); err != errIncompressible {
			t.Errorf("compress(%s, noise) error = %v, want errIncompressible", c, err)
		}
	}

	doc := createTestPlan()
	blob, codec, size, err := marshalPlan(doc, CompressionLZ4)
	if err != nil {
		t.Fatalf("marshalPlan() failed: %v", err)
	}
	if codec == CompressionNone && len(blob) != size {
		t.Errorf("uncompressed blob %d bytes, size %d", len(blob), size)
	}
	if codec != CompressionNone && len(blob) >= size {
		t.Errorf("codec %s kept a blob that did not shrink", codec)
	}
	back, err := unmarshalPlan(blob, codec, size)
	if err != nil {
		t.Fatalf("unmarshalPlan() failed: %v", err)
	}
	if back.Targets[0].Target != "go" {
		t.Errorf("target = %q, want go", back.Targets[0].Target)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionZstd, false},
		{"zstd", CompressionZstd, false},
		{"lz4", CompressionLZ4, false},
		{"none", CompressionNone, false},
		{"gzip", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompression(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCompression(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if s := Compression(9).String(); s != "unknown(9)" {
		t.Errorf("String() = %q", s)
	}
}

func TestRoutineDigest_Stable(t *testing.T) {
	r := createTestRoutine("Point", "json", "pack", "field x")

	d1, err := RoutineDigest(r)
	if err != nil {
		t.Fatalf("RoutineDigest() failed: %v", err)
	}
	d2, _ := RoutineDigest(r)
	if d1 != d2 {
		t.Errorf("digest not stable: %s vs %s", d1, d2)
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(d1))
	}

	r.Ops = append(r.Ops, "field y")
	d3, _ := RoutineDigest(r)
	if d3 == d1 {
		t.Error("different operations share a digest")
	}
}

func TestDigestWithDomain_Separates(t *testing.T) {
	data := []byte("payload")
	if digestWithDomain(DomainRoutine, data) == digestWithDomain(DomainSchema, data) {
		t.Error("domains do not separate digests")
	}
	// The separator keeps "ab"+"c" apart from "a"+"bc".
	if digestWithDomain("ab", []byte("c")) == digestWithDomain("a", []byte("bc")) {
		t.Error("domain boundary is ambiguous")
	}
}

func TestSchemaDigest(t *testing.T) {
	a := map[string][]byte{"a.cue": []byte("A: {}"), "b.cue": []byte("B: {}")}
	b := map[string][]byte{"b.cue": []byte("B: {}"), "a.cue": []byte("A: {}")}
	if SchemaDigest(a) != SchemaDigest(b) {
		t.Error("digest depends on map order")
	}

	renamed := map[string][]byte{"a.cue": []byte("A: {}"), "c.cue": []byte("B: {}")}
	if SchemaDigest(a) == SchemaDigest(renamed) {
		t.Error("path is not part of the digest")
	}
	edited := map[string][]byte{"a.cue": []byte("A: {x: int32}"), "b.cue": []byte("B: {}")}
	if SchemaDigest(a) == SchemaDigest(edited) {
		t.Error("content is not part of the digest")
	}
}
