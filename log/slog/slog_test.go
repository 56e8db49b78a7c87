//go:build go1.21

package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	vc "github.com/unkn0wn-root/variantcache"
)

func TestLoggerWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	base := stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))
	l := New(base, "pages")

	l.Debug("dropped", vc.Fields{"k": "v"})
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered: %s", buf.String())
	}

	l.Warn("unrecognized pointer tag", vc.Fields{"tag": "CP:x", "key": "page:/"})
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec["msg"] != "unrecognized pointer tag" {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec["component"] != "variantcache" || rec["namespace"] != "pages" || rec["tag"] != "CP:x" {
		t.Fatalf("missing attributes %v", rec)
	}
}
