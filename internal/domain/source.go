package domain

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// SourceKind discriminates where a document is loaded from.
type SourceKind int

const (
	LocalFile SourceKind = iota + 1
	RemoteURL
)

func (k SourceKind) String() string {
	switch k {
	case LocalFile:
		return "file"
	case RemoteURL:
		return "url"
	default:
		return "unknown"
	}
}

// Source identifies a document to ingest.
type Source struct {
	Kind     SourceKind
	Location string
}

func FileSource(p string) Source {
	return Source{Kind: LocalFile, Location: p}
}

func URLSource(u string) Source {
	return Source{Kind: RemoteURL, Location: u}
}

// ParseSource classifies a user-supplied path or URL.
func ParseSource(s string) Source {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return URLSource(s)
	}
	return FileSource(s)
}

// Name is the attribution identifier used in chunk payloads and answers.
func (s Source) Name() string {
	switch s.Kind {
	case LocalFile:
		return filepath.Base(s.Location)
	case RemoteURL:
		u, err := url.Parse(s.Location)
		if err != nil {
			return s.Location
		}
		base := path.Base(u.Path)
		if base == "." || base == "/" || base == "" {
			return u.Host
		}
		return base
	default:
		return s.Location
	}
}

func (s Source) String() string {
	return s.Location
}
