package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/dmitrijs2005/invoicedesk/internal/logging"
)

// CookiesKey locates the persisted cookies in the store.
const CookiesKey = "cookies"

// CookieStore persists the jar between runs. Get returns (nil, nil) when
// nothing is stored.
type CookieStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires"`
}

var _ http.CookieJar = (*PersistentJar)(nil)

// PersistentJar is a cookie jar whose cookies for the service host are
// mirrored into a CookieStore, so the refresh cookie outlives the process.
// Cookies for other hosts live in memory only.
type PersistentJar struct {
	jar    *cookiejar.Jar
	site   *url.URL
	store  CookieStore
	logger logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	cookies map[string]storedCookie
}

// NewPersistentJar creates a jar for the service at baseURL and loads the
// cookies stored for it. Expired or unreadable entries are dropped, and a
// store that cannot be read leaves the jar empty.
func NewPersistentJar(ctx context.Context, baseURL string, store CookieStore, logger logging.Logger) (*PersistentJar, error) {
	site, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	j := &PersistentJar{
		jar:     jar,
		site:    site,
		store:   store,
		logger:  logger,
		now:     time.Now,
		cookies: map[string]storedCookie{},
	}
	if err := j.load(ctx); err != nil {
		logger.Warn(ctx, "starting without stored cookies", "error", err)
	}
	return j, nil
}

func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if !strings.EqualFold(u.Host, j.site.Host) {
		return
	}

	now := j.now()
	j.mu.Lock()
	for _, c := range cookies {
		key := c.Name + ";" + c.Path
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!expires.IsZero() && !expires.After(now)) {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = storedCookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: expires}
	}
	j.mu.Unlock()

	j.save(context.Background())
}

// Clear forgets every cookie of the service host, in memory and in the store.
func (j *PersistentJar) Clear(ctx context.Context) error {
	j.mu.Lock()
	expired := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		expired = append(expired, &http.Cookie{Name: c.Name, Path: c.Path, MaxAge: -1})
	}
	clear(j.cookies)
	j.mu.Unlock()

	j.jar.SetCookies(j.site, expired)
	if j.store == nil {
		return nil
	}
	if err := j.store.Delete(ctx, CookiesKey); err != nil {
		return fmt.Errorf("remove stored cookies: %w", err)
	}
	return nil
}

func (j *PersistentJar) load(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	raw, err := j.store.Get(ctx, CookiesKey)
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}
	if raw == nil {
		return nil
	}

	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		j.logger.Warn(ctx, "discarding unreadable stored cookies", "error", err)
		return nil
	}

	now := j.now()
	restored := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		j.cookies[c.Name+";"+c.Path] = c
		restored = append(restored, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	j.jar.SetCookies(j.site, restored)
	j.logger.Debug(ctx, "cookies restored", "count", len(restored))
	return nil
}

// save writes the current cookies, or removes the entry when there are none.
// Store errors are logged.
func (j *PersistentJar) save(ctx context.Context) {
	if j.store == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.cookies) == 0 {
		if err := j.store.Delete(ctx, CookiesKey); err != nil {
			j.logger.Error(ctx, "cannot remove stored cookies", "error", err)
		}
		return
	}

	stored := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		stored = append(stored, c)
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		j.logger.Error(ctx, "cannot encode cookies", "error", err)
		return
	}
	if err := j.store.Set(ctx, CookiesKey, raw); err != nil {
		j.logger.Error(ctx, "cannot persist cookies", "error", err)
	}
}
