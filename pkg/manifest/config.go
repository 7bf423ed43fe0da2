package manifest

import "github.com/joeydtaylor/tbmux/pkg/xsrf"

// Config is the top-level tbmux manifest.
type Config struct {
	Server      Server      `toml:"server"`
	Auth        Auth        `toml:"auth"`
	XSRF        XSRF        `toml:"xsrf"`
	Adapter     Adapter     `toml:"adapter"`
	TensorBoard TensorBoard `toml:"tensorboard"`
	Instances   []Instance  `toml:"instance" validate:"dive"`
}

// Server configures the front-end listener and the URL prefix every route hangs off.
type Server struct {
	Listen      string `toml:"listen"`
	BaseURL     string `toml:"base_url"`
	ContentRoot string `toml:"content_root"`
	TLSCert     string `toml:"tls_cert"`
	TLSKey      string `toml:"tls_key"`
	LogDir      string `toml:"log_dir"`
}

// Auth is the host session configuration consumed by middleware/auth.
type Auth struct {
	SessionCookie   string `toml:"session_cookie"`
	SessionAPI      string `toml:"session_api" validate:"omitempty,url"`
	AdminRole       string `toml:"admin_role"`
	DevBypass       bool   `toml:"dev_bypass"`
	Token           string `toml:"token"`
	AssertionCookie string `toml:"assertion_cookie"`
	AssertionKeyURL string `toml:"assertion_key_url" validate:"omitempty,url"`
	AssertionKeyKID string `toml:"assertion_key_kid"`
	AssertionIssuer string `toml:"assertion_issuer"`
	AssertionAud    string `toml:"assertion_audience"`
	AssertionLeeway int    `toml:"assertion_leeway_seconds" validate:"gte=0"`
}

// XSRF configures the host double-submit check and the compatibility shim.
type XSRF struct {
	CookieName       string `toml:"cookie_name"`
	MirrorCookieName string `toml:"mirror_cookie_name"`
	VersionThreshold string `toml:"version_threshold"`
	AllowOrigin      string `toml:"allow_origin"`
	AllowOriginPat   string `toml:"allow_origin_pat"`
	Disable          bool   `toml:"disable"`
}

// Adapter selects how sub-application entry points are invoked.
type Adapter struct {
	Mode    string `toml:"mode" validate:"omitempty,oneof=inline pool"`
	Workers int    `toml:"workers" validate:"gte=0"`
}

// TensorBoard toggles the whole instance surface.
// Enabled is a pointer so an absent key defaults to true.
type TensorBoard struct {
	Enabled      *bool  `toml:"enabled"`
	FontInstance string `toml:"font_instance"`
}

const (
	DefaultListen           = ":8888"
	DefaultXSRFCookie       = "_xsrf"
	DefaultMirrorCookie     = "XSRF-TOKEN"
	DefaultVersionThreshold = xsrf.DefaultThreshold
	DefaultFontInstance     = "1"
	DefaultLogDir           = "log"

	AdapterInline = "inline"
	AdapterPool   = "pool"
)

// IsEnabled reports whether the instance routes should be mounted.
func (t TensorBoard) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}
