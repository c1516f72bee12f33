package compose

import "strings"

// HostPort extracts the host side of a short-syntax port mapping.
//
//	"8080:80"               -> "8080"
//	"127.0.0.1:8080:80/udp" -> "8080"
//	"80"                    -> "" (no host binding)
//
// The second return value is false when there is no host port.
func HostPort(mapping string) (string, bool) {
	parts := strings.Split(mapping, ":")

	var host string
	switch {
	case len(parts) >= 3:
		host = parts[1]
	case len(parts) == 2:
		host = parts[0]
	default:
		return "", false
	}

	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if host == "" {
		return "", false
	}
	return host, true
}

// VolumeSource returns the part of a volume mapping before the first colon,
// or the whole mapping when there is no colon.
func VolumeSource(mapping string) (string, bool) {
	source := mapping
	if idx := strings.Index(mapping, ":"); idx != -1 {
		source = mapping[:idx]
	}
	return source, source != ""
}

// IsHostPath reports whether a volume source is a bind-mount path rather
// than a named volume.
func IsHostPath(source string) bool {
	return strings.HasPrefix(source, ".") || strings.HasPrefix(source, "/")
}
