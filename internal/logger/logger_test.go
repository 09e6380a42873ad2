package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSlogBridge_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Component: "reader"}, &buf)
	log := NewSlog(&zl)

	ctx := WithCollection(WithRequestID(context.Background(), "req-1"), "landsat8")
	log.InfoContext(ctx, "sample cached", "item", "LC08_001", "err", errors.New("none"))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{
		"msg":        "sample cached",
		"request_id": "req-1",
		"collection": "landsat8",
		"component":  "reader",
		"item":       "LC08_001",
		"err":        "none",
		"level":      "info",
	} {
		if got[k] != want {
			t.Fatalf("field %s=%v want %q (line=%s)", k, got[k], want, buf.String())
		}
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)

	log.Debug("dropped")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}
	log.Warn("kept")
	if !bytes.Contains(buf.Bytes(), []byte(`"kept"`)) {
		t.Fatalf("warn line missing: %s", buf.String())
	}
}

func TestNewID_Unique(t *testing.T) {
	a, b := NewID(), NewID()
	if len(a) != 16 || a == b {
		t.Fatalf("ids a=%q b=%q", a, b)
	}
}
