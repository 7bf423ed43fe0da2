package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joeydtaylor/tbmux/pkg/xsrf"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate normalizes the manifest in place, applies defaults and checks it.
func (c *Config) Validate() error {
	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	seen := make(map[string]struct{}, len(c.Instances))
	for i := range c.Instances {
		c.Instances[i].normalize()
		if err := c.Instances[i].validate(); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
		if _, dup := seen[c.Instances[i].Name]; dup {
			return fmt.Errorf("instance %d: duplicate name %q", i, c.Instances[i].Name)
		}
		seen[c.Instances[i].Name] = struct{}{}
	}

	if p := c.XSRF.AllowOriginPat; p != "" {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("xsrf.allow_origin_pat: %w", err)
		}
	}
	if !xsrf.ValidVersion(c.XSRF.VersionThreshold) {
		return fmt.Errorf("xsrf.version_threshold: %q is not a version", c.XSRF.VersionThreshold)
	}
	if c.Adapter.Mode == AdapterPool && c.Adapter.Workers < 1 {
		return errors.New("adapter.workers must be >= 1 in pool mode")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("server.tls_cert and server.tls_key must be set together")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	c.Server.BaseURL = normalizeBaseURL(c.Server.BaseURL)
	if c.Server.LogDir == "" {
		c.Server.LogDir = DefaultLogDir
	}
	if c.XSRF.CookieName == "" {
		c.XSRF.CookieName = DefaultXSRFCookie
	}
	if c.XSRF.MirrorCookieName == "" {
		c.XSRF.MirrorCookieName = DefaultMirrorCookie
	}
	if c.XSRF.VersionThreshold == "" {
		c.XSRF.VersionThreshold = DefaultVersionThreshold
	}
	c.Adapter.Mode = strings.ToLower(strings.TrimSpace(c.Adapter.Mode))
	if c.Adapter.Mode == "" {
		c.Adapter.Mode = AdapterInline
	}
	if c.TensorBoard.FontInstance == "" {
		c.TensorBoard.FontInstance = DefaultFontInstance
	}
}

// normalizeBaseURL returns "" for the root, otherwise "/a/b" without a trailing slash.
func normalizeBaseURL(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return ""
	}
	return "/" + s
}

func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag()))
	}
	return fmt.Errorf("invalid manifest: %s", strings.Join(msgs, "; "))
}
