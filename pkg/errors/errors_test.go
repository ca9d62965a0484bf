package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	t.Parallel()

	t.Run("creates error with all defaults", func(t *testing.T) {
		err := NewError(ErrCodeInvalidConfig, "max_hot_size must be positive")
		if err == nil {
			t.Fatal("NewError returned nil")
		}
		if err.Code != ErrCodeInvalidConfig {
			t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
		}
		if err.Category != CategoryConfiguration {
			t.Errorf("Category = %v, want %v", err.Category, CategoryConfiguration)
		}
		if err.Details == nil {
			t.Error("Details map is nil")
		}
		if err.Context == nil {
			t.Error("Context map is nil")
		}
		if err.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
		if err.HTTPStatus != 400 {
			t.Errorf("HTTPStatus = %d, want 400", err.HTTPStatus)
		}
	})

	t.Run("sets correct retryable defaults", func(t *testing.T) {
		if !NewError(ErrCodeSinkFailed, "redis down").Retryable {
			t.Error("SinkFailed should be retryable by default")
		}
		if NewError(ErrCodeInvalidConfig, "bad").Retryable {
			t.Error("InvalidConfig should not be retryable by default")
		}
	})
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeConfigLoad, CategoryConfiguration},
		{ErrCodeCacheNotFound, CategoryCache},
		{ErrCodeSerializationFailed, CategoryCache},
		{ErrCodeSinkFailed, CategoryExport},
		{ErrCodeAlreadyStarted, CategoryState},
		{ErrCodeOperationCanceled, CategoryOperation},
		{ErrCodeInternalError, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := GetCategory(tt.code); got != tt.want {
				t.Errorf("GetCategory(%s) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestCacheError_ErrorString(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodeCacheNotFound, "no cache named \"sessions\"").
		WithComponent("registry").
		WithOperation("lookup")

	want := `[registry:lookup] CACHE_NOT_FOUND: no cache named "sessions"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	withCause := NewError(ErrCodeSinkFailed, "emit failed").WithCause(fmt.Errorf("dial tcp: refused"))
	if !strings.HasSuffix(withCause.Error(), "dial tcp: refused") {
		t.Errorf("Error() should include cause, got %q", withCause.Error())
	}
}

func TestCacheError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewError(ErrCodeSinkFailed, "redis sink").WithCause(cause)
	wrapped := fmt.Errorf("monitor: %w", err)

	if !errors.Is(wrapped, NewError(ErrCodeSinkFailed, "")) {
		t.Error("errors.Is should match by code")
	}
	if errors.Is(wrapped, NewError(ErrCodeInvalidConfig, "")) {
		t.Error("errors.Is should not match a different code")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
	if !IsCode(wrapped, ErrCodeSinkFailed) {
		t.Error("IsCode should find the code through wrapping")
	}
	if IsCode(cause, ErrCodeSinkFailed) {
		t.Error("IsCode should be false for plain errors")
	}

	var target *CacheError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find *CacheError")
	}
	if target.Code != ErrCodeSinkFailed {
		t.Errorf("target.Code = %s, want %s", target.Code, ErrCodeSinkFailed)
	}
}

func TestCacheError_JSON(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodeInvalidConfig, "bad size").
		WithComponent("cache").
		WithDetail("max_hot_size", 0).
		WithContext("cache", "api-response")

	var decoded map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(err.JSON()), &decoded); jsonErr != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", jsonErr)
	}
	if decoded["code"] != string(ErrCodeInvalidConfig) {
		t.Errorf("code = %v, want %s", decoded["code"], ErrCodeInvalidConfig)
	}
	if decoded["component"] != "cache" {
		t.Errorf("component = %v, want cache", decoded["component"])
	}
}

func TestCacheError_String(t *testing.T) {
	t.Parallel()

	s := NewError(ErrCodeSinkFailed, "s3 put").
		WithComponent("monitor").
		WithCause(errors.New("timeout")).
		String()

	for _, part := range []string{"Code=SINK_FAILED", "Category=export", "Component=monitor", "Retryable=true", `Cause="timeout"`} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestGetRecommendation(t *testing.T) {
	t.Parallel()

	if rec := NewError(ErrCodeInvalidConfig, "").GetRecommendation(); !strings.Contains(rec, "max_hot_size") {
		t.Errorf("unexpected recommendation %q", rec)
	}
	if rec := NewError(ErrCodeInternalError, "").GetRecommendation(); rec == "" {
		t.Error("fallback recommendation should not be empty")
	}
}
