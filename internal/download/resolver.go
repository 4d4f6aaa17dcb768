package download

import (
	"context"

	apperrors "github.com/tpepels/tidal-ui-sub001/internal/errors"
)

// Resolver turns a download target into a native, downloadable track.
type Resolver struct {
	converter Converter
}

// NewResolver creates a resolver. converter may be nil when automatic
// conversion is never enabled.
func NewResolver(converter Converter) *Resolver {
	return &Resolver{converter: converter}
}

// Resolve returns the downloadable track for target. Native targets pass
// through unchanged. Foreign references are converted only when
// autoResolve is set; otherwise the caller gets FOREIGN_NOT_SUPPORTED
// with the CanConvert marker so it can offer manual conversion.
// Conversion failures are never retried automatically: they reflect a
// catalog mismatch, not a transient fault.
func (r *Resolver) Resolve(ctx context.Context, target Target, autoResolve bool) (Track, bool, *apperrors.Error) {
	if target.Native() {
		return target.Track, false, nil
	}

	if !autoResolve {
		return Track{}, false, apperrors.ForeignNotSupported(target.Source)
	}

	if r.converter == nil {
		return Track{}, false, apperrors.ForeignNotSupported(target.Source)
	}

	track, err := r.converter.ConvertToNative(ctx, target)
	if err != nil {
		return Track{}, false, apperrors.ConversionFailed(err)
	}

	return track, true, nil
}
