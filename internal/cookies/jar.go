package cookies

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoCookieFile indicates the tracker has never had a session persisted.
	ErrNoCookieFile = errors.New("cookie file does not exist")
	// ErrMalformedCookieFile indicates the persisted file could not be parsed.
	ErrMalformedCookieFile = errors.New("cookie file is malformed")
)

const httpOnlyPrefix = "#HttpOnly_"

// Entry is one cookie in Netscape cookie-file form.
type Entry struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           int64 // unix seconds, 0 for session cookies
	Name              string
	Value             string
	HTTPOnly          bool
}

// Jar holds a tracker's cookies loaded from a Netscape cookie file. It
// implements http.CookieJar so an http.Client can carry the session and feed
// refreshed cookies back for the post-validation save.
type Jar struct {
	path    string
	entries []Entry
}

// Load reads a Netscape cookie file. A missing file returns ErrNoCookieFile;
// a file that cannot be parsed returns ErrMalformedCookieFile. The two cases
// get distinct messages because they need different operator action.
func Load(path string) (*Jar, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (log in with a browser and export cookies first)", ErrNoCookieFile, path)
		}
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer file.Close()

	jar := &Jar{path: path}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		entry, ok, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d (re-export the cookie file)", ErrMalformedCookieFile, path, lineNo)
		}
		if ok {
			jar.entries = append(jar.entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	return jar, nil
}

func parseLine(line string) (Entry, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Entry{}, false, nil
	}
	httpOnly := false
	if strings.HasPrefix(trimmed, httpOnlyPrefix) {
		httpOnly = true
		trimmed = strings.TrimPrefix(trimmed, httpOnlyPrefix)
	} else if strings.HasPrefix(trimmed, "#") {
		return Entry{}, false, nil
	}

	fields := strings.Split(trimmed, "\t")
	if len(fields) != 7 {
		return Entry{}, false, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}
	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Entry{}, false, fmt.Errorf("parse expiry: %w", err)
	}
	return Entry{
		Domain:            fields[0],
		IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
		Path:              fields[2],
		Secure:            strings.EqualFold(fields[3], "TRUE"),
		Expires:           expires,
		Name:              fields[5],
		Value:             fields[6],
		HTTPOnly:          httpOnly,
	}, true, nil
}

// Save writes the jar back in Netscape format. Callers only invoke this after
// a response has been positively validated, so a broken session is never
// silently persisted over a working file.
func (j *Jar) Save() error {
	if j.path == "" {
		return errors.New("jar has no backing path")
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("ensure cookie directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	for _, entry := range j.entries {
		if entry.HTTPOnly {
			b.WriteString(httpOnlyPrefix)
		}
		b.WriteString(entry.Domain)
		b.WriteByte('\t')
		b.WriteString(flag(entry.IncludeSubdomains))
		b.WriteByte('\t')
		b.WriteString(entry.Path)
		b.WriteByte('\t')
		b.WriteString(flag(entry.Secure))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatInt(entry.Expires, 10))
		b.WriteByte('\t')
		b.WriteString(entry.Name)
		b.WriteByte('\t')
		b.WriteString(entry.Value)
		b.WriteByte('\n')
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}

func flag(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// Entries returns a copy of the jar's cookies.
func (j *Jar) Entries() []Entry {
	cp := make([]Entry, len(j.entries))
	copy(cp, j.entries)
	return cp
}

// Cookies implements http.CookieJar for outgoing requests.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	now := time.Now().Unix()
	var out []*http.Cookie
	for _, entry := range j.entries {
		if entry.Expires != 0 && entry.Expires < now {
			continue
		}
		if entry.Secure && u.Scheme != "https" {
			continue
		}
		if !domainMatches(u.Hostname(), entry.Domain, entry.IncludeSubdomains) {
			continue
		}
		if !pathMatches(u.Path, entry.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: entry.Name, Value: entry.Value})
	}
	return out
}

// SetCookies implements http.CookieJar for response cookies, merging updates
// into the jar so a subsequent Save persists the refreshed session.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		domain := c.Domain
		includeSub := strings.HasPrefix(domain, ".")
		if domain == "" {
			domain = u.Hostname()
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		entry := Entry{
			Domain:            domain,
			IncludeSubdomains: includeSub,
			Path:              path,
			Secure:            c.Secure,
			Expires:           expires,
			Name:              c.Name,
			Value:             c.Value,
			HTTPOnly:          c.HttpOnly,
		}
		j.upsert(entry)
	}
}

func (j *Jar) upsert(entry Entry) {
	for i := range j.entries {
		if j.entries[i].Name == entry.Name && j.entries[i].Domain == entry.Domain && j.entries[i].Path == entry.Path {
			j.entries[i] = entry
			return
		}
	}
	j.entries = append(j.entries, entry)
}

func domainMatches(host, domain string, includeSubdomains bool) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	if host == domain {
		return true
	}
	if includeSubdomains {
		return strings.HasSuffix(host, "."+domain)
	}
	return false
}

func pathMatches(requestPath, cookiePath string) bool {
	if cookiePath == "" || cookiePath == "/" {
		return true
	}
	if requestPath == "" {
		requestPath = "/"
	}
	if requestPath == cookiePath {
		return true
	}
	return strings.HasPrefix(requestPath, strings.TrimSuffix(cookiePath, "/")+"/")
}
