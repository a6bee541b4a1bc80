package event

import (
	"runtime"
)

// ContextSource supplies the request, user and environment snapshots an
// Event captures at construction time.
type ContextSource interface {
	Request() RequestContext
	User() UserContext
	Environment() EnvironmentContext
}

// StaticSource is a ContextSource backed by already-resolved values. The
// intake layer builds one per request; background producers use one with an
// empty request context.
type StaticSource struct {
	Req RequestContext
	Usr UserContext
	Env EnvironmentContext
}

func (s StaticSource) Request() RequestContext         { return s.Req }
func (s StaticSource) User() UserContext               { return s.Usr }
func (s StaticSource) Environment() EnvironmentContext { return s.Env }

// NewEnvironment resolves the environment snapshot shared by all events of
// one process. DBVersion is whatever the storage layer reported at startup.
func NewEnvironment(siteURL, dbVersion, hostVersion, relayVersion string) EnvironmentContext {
	return EnvironmentContext{
		URL:          siteURL,
		GoVersion:    runtime.Version(),
		DBVersion:    dbVersion,
		HostVersion:  hostVersion,
		RelayVersion: relayVersion,
	}
}
