package xsrf

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
)

const (
	ArgName         = "_xsrf"
	HeaderXSRFToken = "X-Xsrftoken"
	HeaderCSRFToken = "X-Csrftoken"
	HeaderAngular   = "X-XSRF-TOKEN"

	// MaxFormPeek bounds how much of a form body is read looking for _xsrf.
	// A field that starts past it is not seen.
	MaxFormPeek = 10 << 20

	maxFieldLen = 4 << 10
)

// Evidence is the token material a request presents.
type Evidence struct {
	Arg        string
	XSRFHeader string
	CSRFHeader string
	Alternate  string
	Cookie     string
	CookieName string
}

// Collect reads evidence from r without consuming its body. The _xsrf
// argument is looked up in the query string, then in an urlencoded or
// multipart form body within the first MaxFormPeek bytes.
func Collect(r *http.Request, cookieName string) Evidence {
	ev := Evidence{
		CookieName: cookieName,
		Arg:        argument(r, ArgName),
		XSRFHeader: r.Header.Get(HeaderXSRFToken),
		CSRFHeader: r.Header.Get(HeaderCSRFToken),
		Alternate:  r.Header.Get(HeaderAngular),
	}
	if c, err := r.Cookie(cookieName); err == nil {
		ev.Cookie = c.Value
	}
	return ev
}

// Present reports whether any canonical token source is set.
func (e Evidence) Present() bool {
	return e.Arg != "" || e.XSRFHeader != "" || e.CSRFHeader != ""
}

// Token returns the submitted token in the host's precedence order.
func (e Evidence) Token() string {
	switch {
	case e.Arg != "":
		return e.Arg
	case e.XSRFHeader != "":
		return e.XSRFHeader
	default:
		return e.CSRFHeader
	}
}

// argument returns the first value of name from the query string or a form
// body. The body is restored so the sub-application can still read it.
func argument(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	ct, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded":
		vals, err := url.ParseQuery(string(peekBody(r)))
		if err != nil {
			return ""
		}
		return vals.Get(name)
	case "multipart/form-data":
		if params["boundary"] == "" {
			return ""
		}
		return multipartField(peekBody(r), params["boundary"], name)
	}
	return ""
}

// peekBody reads up to MaxFormPeek bytes of r.Body and puts them back in front
// of the unread remainder.
func peekBody(r *http.Request) []byte {
	buf, _ := io.ReadAll(io.LimitReader(r.Body, MaxFormPeek))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	return buf
}

// multipartField scans buf for a non-file part called name. A part cut off by
// the peek limit ends the scan.
func multipartField(buf []byte, boundary, name string) string {
	mr := multipart.NewReader(bytes.NewReader(buf), boundary)
	for {
		p, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if p.FormName() != name || p.FileName() != "" {
			continue
		}
		v, err := io.ReadAll(io.LimitReader(p, maxFieldLen))
		if err != nil {
			return ""
		}
		return string(v)
	}
}
