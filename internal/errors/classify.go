package errors

import (
	"context"
	"errors"
	"strings"
)

// Keyword vocabularies checked against the lower-cased error message.
// Order matters: the first matching category wins.
var (
	networkVocabulary = []string{
		"network", "connection", "timeout", "deadline exceeded", "dns",
		"unreachable", "fetch", "reset by peer", "no such host", "eof",
	}
	storageVocabulary = []string{
		"storage", "disk", "quota", "no space", "permission denied",
		"read-only file system", "file exists",
	}
	conversionVocabulary = []string{
		"conversion", "convert", "codec", "transcode", "ffmpeg", "unsupported format",
	}
	serverVocabulary = []string{
		"server", "http", "upload", "bad gateway", "service unavailable",
		"internal error", "status 5", "bucket",
	}
)

// Classify maps an arbitrary failure to exactly one classified *Error.
// It is deterministic, total, and never panics: nil maps to UNKNOWN_ERROR.
// Already-classified errors pass through unchanged so classification
// happens at most once per failure.
func Classify(err error) *Error {
	if err == nil {
		return Unknown("unknown error")
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) {
		return Cancelled().WithCause(err)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "cancelled") || strings.Contains(msg, "canceled") || strings.Contains(msg, "aborted"):
		return Cancelled().WithCause(err)
	case matchesAny(msg, networkVocabulary):
		return NetworkError("network error while downloading, check your connection").WithCause(err)
	case matchesAny(msg, storageVocabulary):
		return StorageError("could not write the file, check free space and permissions").WithCause(err)
	case matchesAny(msg, conversionVocabulary):
		return ConversionError("audio conversion failed, the format may be unsupported").WithCause(err)
	case matchesAny(msg, serverVocabulary):
		return ServerError("the server could not complete the download").WithCause(err)
	default:
		return Unknown("download failed: " + err.Error()).WithCause(err)
	}
}

func matchesAny(msg string, vocabulary []string) bool {
	for _, keyword := range vocabulary {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
