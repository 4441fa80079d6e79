// Package language holds the set of languages a dubbing run can target.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var ErrUnsupported = errors.New("unsupported language")

// a language both the transcribers and the default synthesizer handle
type Language struct {
	Code string
	Tag  language.Tag
	Name string
}

func (l Language) String() string {
	return l.Code
}

// ISO 639-1 codes accepted for a run
var supportedCodes = []string{"en", "es", "fr", "hi"}

var supported = func() map[string]Language {
	namer := display.English.Languages()
	m := make(map[string]Language, len(supportedCodes))
	for _, code := range supportedCodes {
		tag := language.MustParse(code)
		m[code] = Language{Code: code, Tag: tag, Name: namer.Name(tag)}
	}
	return m
}()

// resolves a code or BCP 47 tag ("es", "es-MX", "FR") to a supported
// language; regional variants collapse to their base language
func Lookup(code string) (Language, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Language{}, fmt.Errorf("%w: empty code", ErrUnsupported)
	}

	tag, err := language.Parse(code)
	if err != nil {
		return Language{}, fmt.Errorf("%w: %q", ErrUnsupported, code)
	}
	base, _ := tag.Base()

	lang, ok := supported[base.String()]
	if !ok {
		return Language{}, fmt.Errorf("%w: %q", ErrUnsupported, code)
	}
	return lang, nil
}

// supported languages sorted by code
func Supported() []Language {
	out := make([]Language, 0, len(supported))
	for _, l := range supported {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// english display name for any parseable tag, supported or not; falls back
// to the input
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
