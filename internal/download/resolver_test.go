package download

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/tpepels/tidal-ui-sub001/internal/errors"
)

type fakeConverter struct {
	calls int
	track Track
	err   error
}

func (f *fakeConverter) ConvertToNative(ctx context.Context, target Target) (Track, error) {
	f.calls++
	return f.track, f.err
}

func nativeTarget() Target {
	return Target{Track: Track{ID: "42", Title: "Song", Artist: "Artist", MediaURL: "https://catalog/42"}}
}

func foreignTarget() Target {
	return Target{
		Track:   Track{ID: "sp:9", Title: "Song", Artist: "Artist"},
		Foreign: true,
		Source:  "spotify",
	}
}

func TestResolver_NativePassThrough(t *testing.T) {
	conv := &fakeConverter{}
	r := NewResolver(conv)

	track, converted, err := r.Resolve(context.Background(), nativeTarget(), true)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if converted {
		t.Error("native targets must not be marked converted")
	}
	if track.ID != "42" {
		t.Errorf("track changed during pass-through: %+v", track)
	}
	if conv.calls != 0 {
		t.Error("converter must not run for native targets")
	}
}

func TestResolver_ForeignWithoutAutoResolve(t *testing.T) {
	conv := &fakeConverter{}
	r := NewResolver(conv)

	_, _, err := r.Resolve(context.Background(), foreignTarget(), false)
	if err == nil {
		t.Fatal("expected FOREIGN_NOT_SUPPORTED")
	}
	if err.Code != apperrors.CodeForeignNotSupported {
		t.Errorf("code = %s, want %s", err.Code, apperrors.CodeForeignNotSupported)
	}
	if !err.CanConvert {
		t.Error("CanConvert marker missing")
	}
	if err.Retry {
		t.Error("FOREIGN_NOT_SUPPORTED must not be retryable")
	}
	if conv.calls != 0 {
		t.Error("converter must never run when autoResolve is disabled")
	}
}

func TestResolver_ForeignWithAutoResolve(t *testing.T) {
	conv := &fakeConverter{track: Track{ID: "42", Title: "Song", MediaURL: "https://catalog/42"}}
	r := NewResolver(conv)

	track, converted, err := r.Resolve(context.Background(), foreignTarget(), true)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !converted {
		t.Error("expected converted=true")
	}
	if track.ID != "42" {
		t.Errorf("unexpected track: %+v", track)
	}
	if conv.calls != 1 {
		t.Errorf("converter calls = %d, want 1", conv.calls)
	}
}

func TestResolver_ConversionFailure(t *testing.T) {
	cause := errors.New("no catalog match")
	conv := &fakeConverter{err: cause}
	r := NewResolver(conv)

	_, _, err := r.Resolve(context.Background(), foreignTarget(), true)
	if err == nil {
		t.Fatal("expected CONVERSION_FAILED")
	}
	if err.Code != apperrors.CodeConversionFailed {
		t.Errorf("code = %s, want %s", err.Code, apperrors.CodeConversionFailed)
	}
	if err.Retry {
		t.Error("conversion failures must not be retryable")
	}
	if !errors.Is(err, cause) {
		t.Error("underlying conversion error should be wrapped")
	}
}
