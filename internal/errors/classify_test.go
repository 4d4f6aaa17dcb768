package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify_Cancellation(t *testing.T) {
	tests := []error{
		context.Canceled,
		errors.New("download cancelled by user"),
		errors.New("request canceled"),
		errors.New("operation aborted"),
		fmt.Errorf("wrapped: %w", context.Canceled),
	}

	for _, raw := range tests {
		got := Classify(raw)
		if got.Code != CodeDownloadCancelled {
			t.Errorf("Classify(%q) code = %s, want %s", raw, got.Code, CodeDownloadCancelled)
		}
		if got.Retry {
			t.Errorf("Classify(%q) retry = true, want false", raw)
		}
	}
}

func TestClassify_Order(t *testing.T) {
	tests := []struct {
		name      string
		raw       error
		wantCode  string
		wantRetry bool
	}{
		{"network", errors.New("network is unreachable"), CodeNetworkError, true},
		{"connection", errors.New("connection refused"), CodeNetworkError, true},
		{"timeout", errors.New("request timeout"), CodeNetworkError, true},
		{"deadline", context.DeadlineExceeded, CodeNetworkError, true},
		{"disk", errors.New("disk quota exceeded"), CodeStorageError, true},
		{"space", errors.New("no space left on device"), CodeStorageError, true},
		{"permission", errors.New("open /music: permission denied"), CodeStorageError, true},
		{"codec", errors.New("codec not supported"), CodeConversionError, false},
		{"ffmpeg", errors.New("ffmpeg exited with code 1"), CodeConversionError, false},
		{"server", errors.New("server returned status 502"), CodeServerError, true},
		{"upload", errors.New("upload rejected"), CodeServerError, true},
		{"unknown", errors.New("something odd happened"), CodeUnknownError, false},
		{"nil", nil, CodeUnknownError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.raw)
			if got.Code != tt.wantCode {
				t.Errorf("Classify(%v) code = %s, want %s", tt.raw, got.Code, tt.wantCode)
			}
			if got.Retry != tt.wantRetry {
				t.Errorf("Classify(%v) retry = %v, want %v", tt.raw, got.Retry, tt.wantRetry)
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// "connection" (network) appears alongside "server"; network is checked first.
	got := Classify(errors.New("server closed the connection"))
	if got.Code != CodeNetworkError {
		t.Errorf("expected network classification to win, got %s", got.Code)
	}
}

func TestClassify_PassThrough(t *testing.T) {
	original := ForeignNotSupported("spotify")
	got := Classify(original)
	if got != original {
		t.Error("already-classified error should pass through unchanged")
	}
	if !got.CanConvert {
		t.Error("CanConvert marker lost during classification")
	}

	wrapped := fmt.Errorf("resolve: %w", ConversionFailed(errors.New("no match")))
	got = Classify(wrapped)
	if got.Code != CodeConversionFailed {
		t.Errorf("wrapped classified error: code = %s, want %s", got.Code, CodeConversionFailed)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NetworkError("no connection").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	var classified *Error
	if !errors.As(fmt.Errorf("wrap: %w", err), &classified) {
		t.Error("errors.As should find *Error through wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NetworkError("x")) {
		t.Error("network errors should be retryable")
	}
	if IsRetryable(ConversionFailed(errors.New("x"))) {
		t.Error("conversion failures should not be retryable")
	}
	if IsRetryable(errors.New("raw")) {
		t.Error("unclassified errors should not be retryable")
	}
}
