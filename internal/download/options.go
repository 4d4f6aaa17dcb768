package download

// Quality selects the stream quality requested from the catalog.
type Quality string

const (
	QualityLow      Quality = "LOW"
	QualityHigh     Quality = "HIGH"
	QualityLossless Quality = "LOSSLESS"
	QualityMax      Quality = "HI_RES"
)

// NotificationMode controls which UI surface failures are reported to.
type NotificationMode string

const (
	NotifyAlert  NotificationMode = "alert"
	NotifyToast  NotificationMode = "toast"
	NotifySilent NotificationMode = "silent"
)

// StrategyKind selects the execution backend. Selection is always
// caller-supplied, never auto-detected.
type StrategyKind string

const (
	StrategyClient      StrategyKind = "client"
	StrategyServer      StrategyKind = "server"
	StrategyCoordinator StrategyKind = "coordinator"
)

// StorageTarget selects where the finished file ends up.
type StorageTarget string

const (
	StorageClient StorageTarget = "client"
	StorageServer StorageTarget = "server"
)

// ConflictPolicy controls how server-side saves handle an existing object.
type ConflictPolicy string

const (
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictSkip      ConflictPolicy = "skip"
	ConflictIfChanged ConflictPolicy = "if_changed"
)

// Preferences is a caller-supplied snapshot of defaults for every option.
type Preferences struct {
	Quality        Quality
	ConvertFormat  bool
	FetchCoverArt  bool
	AutoResolve    bool
	Notification   NotificationMode
	Strategy       StrategyKind
	Storage        StorageTarget
	ConflictPolicy ConflictPolicy
}

// DefaultPreferences returns the stock preference snapshot.
func DefaultPreferences() Preferences {
	return Preferences{
		Quality:        QualityLossless,
		ConvertFormat:  false,
		FetchCoverArt:  true,
		AutoResolve:    false,
		Notification:   NotifyToast,
		Strategy:       StrategyClient,
		Storage:        StorageClient,
		ConflictPolicy: ConflictOverwrite,
	}
}

// Options overrides preference defaults per call. Zero-valued fields fall
// back to the preference snapshot; pointer fields distinguish an explicit
// false from "unset".
type Options struct {
	Quality        Quality          `json:"quality,omitempty"`
	ConvertFormat  *bool            `json:"convert_format,omitempty"`
	FetchCoverArt  *bool            `json:"fetch_cover_art,omitempty"`
	AutoResolve    *bool            `json:"auto_resolve,omitempty"`
	Notification   NotificationMode `json:"notification,omitempty"`
	Strategy       StrategyKind     `json:"strategy,omitempty"`
	Storage        StorageTarget    `json:"storage,omitempty"`
	ConflictPolicy ConflictPolicy   `json:"conflict_policy,omitempty"`
}

// settings is one attempt's fully resolved configuration.
type settings struct {
	Quality        Quality
	ConvertFormat  bool
	FetchCoverArt  bool
	AutoResolve    bool
	Notification   NotificationMode
	Strategy       StrategyKind
	Storage        StorageTarget
	ConflictPolicy ConflictPolicy
}

// resolveOptions merges explicit option values over the preference
// snapshot. Explicit values always win.
func resolveOptions(opts *Options, prefs Preferences) settings {
	s := settings{
		Quality:        prefs.Quality,
		ConvertFormat:  prefs.ConvertFormat,
		FetchCoverArt:  prefs.FetchCoverArt,
		AutoResolve:    prefs.AutoResolve,
		Notification:   prefs.Notification,
		Strategy:       prefs.Strategy,
		Storage:        prefs.Storage,
		ConflictPolicy: prefs.ConflictPolicy,
	}
	if opts == nil {
		return s
	}
	if opts.Quality != "" {
		s.Quality = opts.Quality
	}
	if opts.ConvertFormat != nil {
		s.ConvertFormat = *opts.ConvertFormat
	}
	if opts.FetchCoverArt != nil {
		s.FetchCoverArt = *opts.FetchCoverArt
	}
	if opts.AutoResolve != nil {
		s.AutoResolve = *opts.AutoResolve
	}
	if opts.Notification != "" {
		s.Notification = opts.Notification
	}
	if opts.Strategy != "" {
		s.Strategy = opts.Strategy
	}
	if opts.Storage != "" {
		s.Storage = opts.Storage
	}
	if opts.ConflictPolicy != "" {
		s.ConflictPolicy = opts.ConflictPolicy
	}
	return s
}
