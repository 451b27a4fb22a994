package session

import (
	"net/url"
	"path"
	"strings"
)

// LoginPath is where unauthenticated visitors of protected views are sent.
const LoginPath = "/login"

var (
	protectedPaths = []string{"/dashboard", "/predict", "/profile"}
	guestOnlyPaths = []string{"/login", "/signup"}
	publicPaths    = []string{"/", "/about", "/contact"}
)

// Decision is the outcome of Authorize. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

// Authorize decides whether a visitor may open target. Protected views send
// anonymous visitors to the login page with the intended destination in
// "next"; the login and sign-up pages send signed-in users home.
func Authorize(authenticated bool, target string) Decision {
	clean, query := splitTarget(target)
	switch {
	case matches(protectedPaths, clean) && !authenticated:
		next := clean
		if query != "" {
			next += "?" + query
		}
		return Decision{Redirect: LoginPath + "?next=" + url.QueryEscape(next)}
	case matches(guestOnlyPaths, clean) && authenticated:
		return Decision{Redirect: "/"}
	default:
		return Decision{Allow: true}
	}
}

// IsProtected reports whether target requires a signed-in user.
func IsProtected(target string) bool {
	clean, _ := splitTarget(target)
	return matches(protectedPaths, clean)
}

// SafeNext validates a post-login destination. Only local paths of known
// views are accepted; anything else, including the auth pages themselves,
// yields "/".
func SafeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	clean, query := splitTarget(raw)
	if !matches(protectedPaths, clean) && !matches(publicPaths, clean) {
		return "/"
	}
	if query != "" {
		return clean + "?" + query
	}
	return clean
}

func splitTarget(target string) (string, string) {
	target = strings.TrimSpace(target)
	rawPath, query, _ := strings.Cut(target, "?")
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}
	return path.Clean(rawPath), query
}

func matches(prefixes []string, clean string) bool {
	for _, prefix := range prefixes {
		if clean == prefix {
			return true
		}
		if prefix != "/" && strings.HasPrefix(clean, prefix+"/") {
			return true
		}
	}
	return false
}
