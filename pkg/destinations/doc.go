// Package destinations is the registry of per-account outbound HTTP
// targets that inbound events are fanned out to.
//
// A destination has a unique http(s) URL, one of the GET, POST, PUT or
// DELETE methods and a map of extra request headers. Writes sweep the
// destination and delivery log cache namespaces.
package destinations
