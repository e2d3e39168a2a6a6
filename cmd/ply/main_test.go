package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v2"

	plist "github.com/hqtsm/plist-sub000"
)

func sampleValue() plist.Value {
	d := plist.NewDict()
	d.Set(plist.NewString("name"), plist.NewString("ply"))
	d.Set(plist.NewString("list"), plist.NewArray(plist.NewInteger(1), plist.NewBoolean(false)))
	d.Set(plist.NewString("data"), plist.NewData([]byte("hi")))
	d.Set(plist.NewString("uid"), plist.NewUID(4))
	return d
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	dump(&buf, sampleValue())
	want := `dict (4) {
  "name" => "ply"
  "list" => array (2) [
    [0] integer(64) 1
    [1] false
  ]
  "data" => data (2) <6869>
  "uid" => uid 4
}
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("dump (-want +got):\n%s", diff)
	}
}

func TestConvertJSON(t *testing.T) {
	out, err := convert(sampleValue(), &options{Convert: "json"})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"name": "ply",
		"list": []interface{}{float64(1), false},
		"data": "aGk=",
		"uid":  map[string]interface{}{"CF$UID": float64(4)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json (-want +got):\n%s", diff)
	}
}

func TestConvertYAML(t *testing.T) {
	out, err := convert(sampleValue(), &options{Convert: "yaml"})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := yaml.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got["name"] != "ply" || got["data"] != "aGk=" {
		t.Errorf("yaml = %v", got)
	}
}

func TestConvertPlist(t *testing.T) {
	for _, format := range []string{"xml", "binary"} {
		out, err := convert(sampleValue(), &options{Convert: format})
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		var v plist.Value
		if _, err := plist.Unmarshal(out, &v); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !plist.Equal(v, sampleValue()) {
			t.Errorf("%s: converted document differs", format)
		}
	}
	if _, err := convert(sampleValue(), &options{Convert: "toml"}); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestPortable(t *testing.T) {
	when := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	got := portable([]interface{}{[]byte{0xFF}, when, big.NewInt(-9), plist.NewUID(1)})
	want := []interface{}{
		"/w==",
		"2001-01-01T00:00:00Z",
		"-9",
		map[string]interface{}{"CF$UID": uint32(1)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("portable (-want +got):\n%s", diff)
	}
}

func TestDescribe(t *testing.T) {
	for _, tc := range []struct {
		v    plist.Value
		want string
	}{
		{plist.NewNull(), "null"},
		{plist.NewReal32(0.5), "real(32) 0.5"},
		{plist.NewDate(0), "date 2001-01-01T00:00:00Z"},
		{plist.NewData(bytes.Repeat([]byte{1}, 40)), "data (40) <" + strings.Repeat("01", dumpDataBytes) + "...>"},
		{plist.NewSet(), "set"},
	} {
		if got := describe(tc.v); got != tc.want {
			t.Errorf("describe = %q, want %q", got, tc.want)
		}
	}
}
