package assignment

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	vc "github.com/unkn0wn-root/variantcache"
	"github.com/unkn0wn-root/variantcache/codec"
)

const (
	defaultCookiePrefix = "vc_t_"
	defaultCookieMaxAge = 90 * 24 * time.Hour
)

// CookieOptions configure a CookieJar. Zero values default.
type CookieOptions struct {
	Prefix   string        // "" => "vc_t_"
	MaxAge   time.Duration // 0 => 90 days
	Path     string        // "" => "/"
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite

	Codec     codec.Codec[Record] // nil => deterministic CBOR
	MaxDecode int                 // 0 => DefaultMaxDecode
	Policy    Policy
}

// CookieJar holds the shared cookie configuration. For binds it to one request.
type CookieJar struct {
	opts  CookieOptions
	codec codec.Codec[Record]
}

// NewCookieJar validates opts and fills defaults.
func NewCookieJar(opts CookieOptions) (*CookieJar, error) {
	if opts.Prefix == "" {
		opts.Prefix = defaultCookiePrefix
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultCookieMaxAge
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.MaxDecode <= 0 {
		opts.MaxDecode = DefaultMaxDecode
	}
	inner := opts.Codec
	if inner == nil {
		c, err := codec.NewCBOR[Record](true)
		if err != nil {
			return nil, err
		}
		inner = c
	}
	return &CookieJar{opts: opts, codec: codec.Limit[Record]{Inner: inner, MaxDecode: opts.MaxDecode}}, nil
}

// Name returns the cookie name used for test. Test names are base64url
// encoded so any name yields a valid cookie token.
func (j *CookieJar) Name(test string) string {
	return j.opts.Prefix + base64.RawURLEncoding.EncodeToString([]byte(test))
}

// For returns the assignment store of the visitor making r. Decisions are
// written to w as Set-Cookie headers, so For must be called before the
// response headers are flushed.
func (j *CookieJar) For(w http.ResponseWriter, r *http.Request) *Cookie {
	return &Cookie{jar: j, w: w, r: r, written: make(map[string]Record)}
}

// Cookie is a per-request assignment store. Writes made during the request
// are visible to later reads of the same request.
type Cookie struct {
	jar *CookieJar
	w   http.ResponseWriter
	r   *http.Request

	mu      sync.Mutex
	written map[string]Record
}

var _ vc.AssignmentStore = (*Cookie)(nil)

func (c *Cookie) Get(_ context.Context, test string) (vc.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(test), nil
}

func (c *Cookie) get(test string) vc.Assignment {
	if rec, ok := c.written[test]; ok {
		return toAssignment(rec)
	}
	ck, err := c.r.Cookie(c.jar.Name(test))
	if err != nil {
		return vc.Assignment{}
	}
	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return vc.Assignment{Seen: true}
	}
	rec, err := c.jar.codec.Decode(raw)
	if err != nil {
		// unreadable: seen, but free to be decided again
		return vc.Assignment{Seen: true}
	}
	return toAssignment(rec)
}

func (c *Cookie) SetVariant(_ context.Context, test, variant string) error {
	return c.set(test, Record{Variant: variant})
}

func (c *Cookie) SetExcluded(_ context.Context, test string) error {
	return c.set(test, Record{Excluded: true})
}

func (c *Cookie) set(test string, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jar.opts.Policy == FirstWriteWins && c.get(test).Decided() {
		return nil
	}
	b, err := c.jar.codec.Encode(rec)
	if err != nil {
		return err
	}
	o := c.jar.opts
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.jar.Name(test),
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   int(o.MaxAge / time.Second),
		Expires:  time.Now().Add(o.MaxAge),
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	})
	c.written[test] = rec
	return nil
}

func toAssignment(rec Record) vc.Assignment {
	a := vc.Assignment{Seen: true, Excluded: rec.Excluded}
	if !rec.Excluded {
		a.Variant = rec.Variant
	}
	return a
}
