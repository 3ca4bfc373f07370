package region

import (
	"fmt"
	"strings"
)

// Kind is the back-office system a BBB runs on. It decides which profile URL
// the upload files link to.
type Kind string

const (
	KindBlue    Kind = "Blue"
	KindHurdman Kind = "Hurdman"
)

func parseKind(s string) Kind {
	switch strings.TrimSpace(s) {
	case "", string(KindBlue):
		return KindBlue
	default:
		return KindHurdman
	}
}

type Region struct {
	ID   string
	Name string
	Kind Kind
}

func (r Region) String() string {
	if r.Name == "" {
		return r.ID
	}
	return fmt.Sprintf("%s (%s)", r.ID, r.Name)
}

// Assignment pairs a region with the zip codes read from its zip file.
// Err is set when the zip file could not be used; ZipCodes is nil then.
type Assignment struct {
	Region   Region
	ZipCodes []string
	Err      error
}

// ConfigurationError reports a missing or malformed input file.
type ConfigurationError struct {
	Path   string
	Region string
	Line   int
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Region != "" {
		fmt.Fprintf(&b, " region=%s", e.Region)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line=%d", e.Line)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
