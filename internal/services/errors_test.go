package services_test

import (
	"errors"
	"strings"
	"testing"

	"seasonbot/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrNotFound, "catalog", "append file", "season missing", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"catalog", "append file", "season missing"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "catalog", "create", "empty name", nil), services.KindValidation},
		{"not found", services.Wrap(services.ErrNotFound, "catalog", "get", "", nil), services.KindNotFound},
		{"exists", services.Wrap(services.ErrAlreadyExists, "catalog", "create", "", nil), services.KindAlreadyExists},
		{"forbidden", services.ErrForbidden, services.KindForbidden},
		{"raw", errors.New("disk on fire"), services.KindInternal},
		{"transient", services.Wrap(services.ErrTransient, "catalog", "append", "", errors.New("busy")), services.KindInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}
