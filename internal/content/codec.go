// Package content serializes item content to and from the opaque byte
// encoding stored inside sealed item payloads. The encoding is versioned
// by an explicit format version persisted per item; the codec decodes
// every version it has ever emitted.
package content

import (
	"encoding/json"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/domain"
)

// FormatVersionV1 is the current content format: a JSON envelope with an
// in-band content-case discriminator.
const FormatVersionV1 = 1

const (
	caseLogin = "login"
	caseNote  = "note"
	caseAlias = "alias"
)

type envelopeV1 struct {
	Metadata metadataV1  `json:"metadata"`
	Content  contentV1   `json:"content"`
	Platform *platformV1 `json:"platformSpecific,omitempty"`
}

type metadataV1 struct {
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

type contentV1 struct {
	Case  string   `json:"case"`
	Login *loginV1 `json:"login,omitempty"`
}

type loginV1 struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Urls     []string `json:"urls,omitempty"`
}

type platformV1 struct {
	AllowedApps []string `json:"allowedApps,omitempty"`
}

// Encode serializes content at the given format version. The variant tag
// travels inside the bytes; the alias email does not (it is associated
// out-of-band by the provisioning flow).
func Encode(c domain.ItemContent, formatVersion int) ([]byte, error) {
	if formatVersion != FormatVersionV1 {
		return nil, fmt.Errorf("cannot encode format version %d: %w", formatVersion, domain.ErrUnsupportedContent)
	}

	env := envelopeV1{Metadata: metadataV1{Name: c.Title}}
	if len(c.AllowedApps) > 0 {
		env.Platform = &platformV1{AllowedApps: c.AllowedApps}
	}

	switch v := c.Type.(type) {
	case domain.Login:
		env.Content.Case = caseLogin
		env.Content.Login = &loginV1{Username: v.Username, Password: v.Password, Urls: v.Websites}
	case domain.Note:
		env.Content.Case = caseNote
		env.Metadata.Note = v.Text
	case domain.Alias:
		env.Content.Case = caseAlias
	default:
		return nil, fmt.Errorf("unknown content variant %T: %w", c.Type, domain.ErrUnsupportedContent)
	}

	return json.Marshal(env)
}

// Decode parses raw content bytes at the given format version. For alias
// items the provisioned address must be supplied by the caller. Unknown
// versions and unknown content cases yield domain.ErrUnsupportedContent
// so that items produced by newer clients are preserved undecoded rather
// than dropped.
func Decode(raw []byte, formatVersion int, aliasEmail string) (domain.ItemContent, error) {
	switch formatVersion {
	case FormatVersionV1:
		return decodeV1(raw, aliasEmail)
	default:
		return domain.ItemContent{}, fmt.Errorf("cannot decode format version %d: %w", formatVersion, domain.ErrUnsupportedContent)
	}
}

func decodeV1(raw []byte, aliasEmail string) (domain.ItemContent, error) {
	var env envelopeV1
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.ItemContent{}, fmt.Errorf("parse content envelope: %w", err)
	}

	out := domain.ItemContent{Title: env.Metadata.Name}
	if env.Platform != nil {
		out.AllowedApps = env.Platform.AllowedApps
	}

	switch env.Content.Case {
	case caseLogin:
		if env.Content.Login == nil {
			return domain.ItemContent{}, fmt.Errorf("login content without login body: %w", domain.ErrUnsupportedContent)
		}
		out.Type = domain.Login{
			Username: env.Content.Login.Username,
			Password: env.Content.Login.Password,
			Websites: env.Content.Login.Urls,
		}
	case caseNote:
		out.Type = domain.Note{Text: env.Metadata.Note}
	case caseAlias:
		if aliasEmail == "" {
			return domain.ItemContent{}, fmt.Errorf("alias content requires an associated alias email")
		}
		out.Type = domain.Alias{AliasEmail: aliasEmail}
	default:
		return domain.ItemContent{}, fmt.Errorf("unknown content case %q: %w", env.Content.Case, domain.ErrUnsupportedContent)
	}

	return out, nil
}
