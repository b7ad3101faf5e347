package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesMetadataAndCause(t *testing.T) {
	err := New(
		"Bullet",
		CodeDuplicatePool,
		WithMessage("pool already created"),
		WithField("size", "3"),
		WithField("template", "Bullet"),
		WithRemediation("call Spawn or warm a different template"),
		WithCause(errors.New("second warm")),
	)

	out := err.Error()
	if !strings.Contains(out, "pool=Bullet") {
		t.Fatalf("expected pool marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=duplicate_pool") {
		t.Fatalf("expected code in error string: %s", out)
	}
	expectedMeta := "meta=size=\"3\",template=\"Bullet\""
	if !strings.Contains(out, expectedMeta) {
		t.Fatalf("expected metadata %q in error string: %s", expectedMeta, out)
	}
	if !strings.Contains(out, "remediation=\"call Spawn or warm a different template\"") {
		t.Fatalf("expected remediation in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"second warm\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestEmptyPoolDefaultsToUnknown(t *testing.T) {
	err := New("  ", CodeInvalid)
	if !strings.Contains(err.Error(), "pool=unknown") {
		t.Fatalf("expected unknown pool marker: %s", err.Error())
	}
}

func TestWithFieldIgnoresBlankKey(t *testing.T) {
	err := New("Bullet", CodeInvalid, WithField(" ", "x"))
	if err.Metadata != nil {
		t.Fatalf("expected metadata to stay nil, got %v", err.Metadata)
	}
}

func TestHasCodeThroughWrapping(t *testing.T) {
	base := New("Bullet", CodePoolExhausted)
	wrapped := fmt.Errorf("spawn: %w", base)

	if !HasCode(wrapped, CodePoolExhausted) {
		t.Fatal("expected wrapped error to carry pool_exhausted")
	}
	if HasCode(wrapped, CodeDuplicatePool) {
		t.Fatal("unexpected duplicate_pool match")
	}
	if HasCode(errors.New("plain"), CodeInvalid) {
		t.Fatal("plain errors carry no code")
	}
	code, ok := CodeOf(wrapped)
	if !ok || code != CodePoolExhausted {
		t.Fatalf("unexpected code %q (ok=%v)", code, ok)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("factory failed")
	err := New("Spark", CodeInstantiate, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if e.Error() != "<nil>" {
		t.Fatalf("unexpected nil rendering %q", e.Error())
	}
}
