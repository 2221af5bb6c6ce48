package guard

import "fmt"

type Kind int

const (
	KindAllow Kind = iota
	KindBlocked
	KindRedirect
)

// Decision is the outcome of a guard check. Only KindRedirect carries a URL.
type Decision struct {
	Kind Kind
	URL  string
}

var (
	Allow   = Decision{Kind: KindAllow}
	Blocked = Decision{Kind: KindBlocked}
)

func RedirectTo(url string) Decision {
	return Decision{Kind: KindRedirect, URL: url}
}

// MayProceed is true if protected content may be rendered
func (d Decision) MayProceed() bool {
	return d.Kind == KindAllow
}

func (d Decision) String() string {
	switch d.Kind {
	case KindAllow:
		return "allow"
	case KindBlocked:
		return "blocked"
	case KindRedirect:
		return fmt.Sprintf("redirect %s", d.URL)
	default:
		return fmt.Sprintf("unknown(%d)", d.Kind)
	}
}
