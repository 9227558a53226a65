package credentials

// Kinds of credentials reported by the credential store.
const (
	KindSSH              = "ssh"
	KindUsernamePassword = "usernamePassword"
)

// Credential is a stored credential, an inline username/password pair, or
// the "no credential" sentinel.
type Credential struct {
	ID            string `json:"id,omitempty"`
	Username      string `json:"username,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	Kind          string `json:"kind,omitempty"`
	SystemDefault bool   `json:"systemDefault,omitempty"`

	// Password is only set for inline credentials typed into the connect
	// step and never leaves the process except towards build file injection.
	Password string `json:"-"`
}

// None returns the sentinel credential with the given display name.
func None(displayName string) Credential {
	return Credential{DisplayName: displayName}
}

// IsNone reports whether c is the "no credential" sentinel.
func (c Credential) IsNone() bool {
	return c.ID == "" && c.Username == ""
}

// IsInline reports whether c was typed in rather than picked from the store.
func (c Credential) IsInline() bool {
	return c.ID == "" && c.Username != ""
}

// Label is the text shown for the credential in lists.
func (c Credential) Label() string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.Username != "":
		return c.Username
	default:
		return c.ID
	}
}

func (c Credential) isSystemSSH() bool {
	return c.Kind == KindSSH && c.SystemDefault
}
