package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithOrderNumber(ctx, "SF-20261015-ABC123")

	log.Error(ctx, "boom", errors.New("boom"))

	for _, want := range []string{`"request_id":"req-123"`, `"order_number":"SF-20261015-ABC123"`, `"stack"`} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Fatalf("expected %s in entry=%s", want, buf.String())
		}
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled; entry=%s", buf.String())
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("did not expect stack without warn stack; entry=%s", buf.String())
	}
}

func TestWithFieldsDoesNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	parent := context.Background()
	_ = log.WithCustomerID(parent, "cust-1")
	log.Info(parent, "parent")

	if bytes.Contains(buf.Bytes(), []byte("cust-1")) {
		t.Fatalf("parent context should not carry child fields; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestLoggerRedactsSensitiveFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithFields(context.Background(), map[string]any{
		"source_id": "cnon:card-nonce-ok",
		"email":     "ada@example.com",
		"amount":    1999,
	})
	log.Info(ctx, "payment started")

	out := buf.String()
	if strings.Contains(out, "cnon:card-nonce-ok") || strings.Contains(out, "ada@example.com") {
		t.Fatalf("sensitive value leaked: %s", out)
	}
	for _, want := range []string{`"source_id":"[redacted]"`, `"email":"a***@example.com"`, `"amount":1999`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in entry=%s", want, out)
		}
	}
}

func TestLoggerErrorTagsTypedErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	log.Error(context.Background(), "declined", pkgerrors.New(pkgerrors.CodePaymentDeclined, "card declined"))
	out := buf.String()
	if !strings.Contains(out, `"error_code":"`+string(pkgerrors.CodePaymentDeclined)+`"`) {
		t.Fatalf("expected error code in entry=%s", out)
	}
	if strings.Contains(out, `"stack"`) {
		t.Fatalf("client errors should not carry a stack; entry=%s", out)
	}

	buf.Reset()
	log.Error(context.Background(), "db down", pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial"), "load order"))
	out = buf.String()
	if !strings.Contains(out, `"retryable":true`) || !strings.Contains(out, `"stack"`) {
		t.Fatalf("expected retryable dependency error with stack; entry=%s", out)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"ada@example.com": "a***@example.com",
		"not-an-email":    "[redacted]",
		"@example.com":    "[redacted]",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
