package engine

// Phase is the orchestrator's position in its lifecycle. Transitions only
// run forward: Loading resolves once into Native or Redirect.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseNative
	PhaseRedirect
)

func (p Phase) String() string {
	switch p {
	case PhaseNative:
		return "native"
	case PhaseRedirect:
		return "redirect"
	default:
		return "loading"
	}
}

// AppState is the one observable the presentation layer consumes.
type AppState struct {
	Phase          Phase
	DestinationURL string
}

func (s AppState) Terminal() bool {
	return s.Phase == PhaseNative || s.Phase == PhaseRedirect
}

type eventKind int

const (
	evConfigFetched eventKind = iota
	evPermissionAsked
	evAttributionResolved
	evLinkResolved
	evResolveFailed
	evWatchdog
)

func (k eventKind) String() string {
	switch k {
	case evConfigFetched:
		return "config_fetched"
	case evPermissionAsked:
		return "permission_asked"
	case evAttributionResolved:
		return "attribution_resolved"
	case evLinkResolved:
		return "link_resolved"
	case evResolveFailed:
		return "resolve_failed"
	case evWatchdog:
		return "watchdog"
	default:
		return "unknown"
	}
}

type event struct {
	kind eventKind
	url  string // evLinkResolved only
}
