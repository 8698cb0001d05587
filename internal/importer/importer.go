// Package importer decodes shared shopping lists from deep links, shared text
// and the clipboard.
package importer

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

const (
	Scheme = "quickyshoppy"
	Host   = "import"
)

var (
	// ErrNoImport means the source does not carry import data at all.
	ErrNoImport = errors.New("no import data")
	// ErrInvalidImport means the source looked like an import but its payload
	// could not be decoded or validated.
	ErrInvalidImport = errors.New("invalid import data")
)

// Source identifies where import data came from.
type Source string

const (
	SourceDeepLink   Source = "deep_link"
	SourceSharedText Source = "shared_text"
	SourceClipboard  Source = "clipboard"
)

// Sources are the candidate inputs checked by Detect. Empty fields are skipped.
type Sources struct {
	DeepLink   string `json:"deep_link"`
	SharedText string `json:"shared_text"`
	Clipboard  string `json:"clipboard"`
}

var (
	sharedPattern = regexp.MustCompile(`quickyshoppy://import\?data=([A-Za-z0-9+/=_-]+)`)
	validate      = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

// ParseDeepLink decodes a quickyshoppy://import?data=<base64 json> URI.
func ParseDeepLink(uri string) (*model.ImportData, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil || !strings.EqualFold(u.Scheme, Scheme) || !strings.EqualFold(u.Host, Host) {
		return nil, ErrNoImport
	}
	payload := u.Query().Get("data")
	if payload == "" {
		return nil, fmt.Errorf("%w: missing data parameter", ErrInvalidImport)
	}
	return decodePayload(payload)
}

// ParseSharedText finds an import link embedded in free text.
func ParseSharedText(text string) (*model.ImportData, error) {
	m := sharedPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrNoImport
	}
	return decodePayload(m[1])
}

// ParseClipboard accepts raw JSON of the import shape. Anything that does not
// parse into at least one valid item is ErrNoImport, never ErrInvalidImport.
func ParseClipboard(text string) (*model.ImportData, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil, ErrNoImport
	}
	data, err := parse([]byte(text))
	if err != nil {
		return nil, ErrNoImport
	}
	return data, nil
}

// Detect checks the sources in priority order: deep link, shared text, then
// clipboard. A malformed explicit import (deep link or shared text) is
// reported; a clipboard that holds anything else is not.
func Detect(s Sources) (*model.ImportData, Source, error) {
	explicit := []struct {
		source Source
		input  string
		parse  func(string) (*model.ImportData, error)
	}{
		{SourceDeepLink, s.DeepLink, ParseDeepLink},
		{SourceSharedText, s.SharedText, ParseSharedText},
	}
	for _, e := range explicit {
		if strings.TrimSpace(e.input) == "" {
			continue
		}
		data, err := e.parse(e.input)
		if err == nil {
			return data, e.source, nil
		}
		if !errors.Is(err, ErrNoImport) {
			return nil, e.source, err
		}
	}

	if s.Clipboard != "" {
		if data, err := ParseClipboard(s.Clipboard); err == nil {
			return data, SourceClipboard, nil
		}
	}
	return nil, "", ErrNoImport
}

func decodePayload(payload string) (*model.ImportData, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	data, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return data, nil
}

// decodeBase64 accepts the standard and URL-safe alphabets with or without
// padding. Query decoding turns '+' into ' ', so spaces are restored first.
func decodeBase64(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "+")
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("decode base64: %w", firstErr)
}

func parse(raw []byte) (*model.ImportData, error) {
	var data model.ImportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if len(data.Items) == 0 {
		return nil, errors.New("no items")
	}
	if err := validate.Struct(&data); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	for i := range data.Items {
		data.Items[i].Name = strings.TrimSpace(data.Items[i].Name)
	}
	return &data, nil
}
