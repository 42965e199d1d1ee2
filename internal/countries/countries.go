// Package countries holds the static dial-code table used to qualify
// user-entered phone numbers.
package countries

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang-wa-broadcast/internal/domain"

	yaml "go.yaml.in/yaml/v3"
)

// WildcardCode selects heuristic normalization instead of a fixed dial code.
const WildcardCode = "all"

const flagURLTemplate = "https://flagsapi.com/%s/shiny/64.png"

//go:embed countries.yaml
var embedded []byte

// Country is one selectable entry of the table.
type Country struct {
	Code     string `yaml:"code" json:"code"`
	Name     string `yaml:"name" json:"name"`
	DialCode string `yaml:"dial_code" json:"dial_code"`
	FlagURL  string `yaml:"-" json:"flag_url,omitempty"`
}

// Table is an immutable lookup of countries by ISO code.
type Table struct {
	list   []Country
	byCode map[string]Country
}

// Load parses the table compiled into the binary.
func Load() (*Table, error) {
	return Parse(embedded)
}

// Parse builds a Table from a YAML list of countries. Entries are sorted by
// name; codes must be unique and dial codes digits only.
func Parse(data []byte) (*Table, error) {
	var raw []Country
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("country table is empty")
	}

	t := &Table{
		list:   make([]Country, 0, len(raw)),
		byCode: make(map[string]Country, len(raw)),
	}
	for _, c := range raw {
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if c.Code == "" || strings.EqualFold(c.Code, WildcardCode) {
			return nil, fmt.Errorf("invalid country code %q", c.Code)
		}
		if _, dup := t.byCode[c.Code]; dup {
			return nil, fmt.Errorf("duplicate country code %s", c.Code)
		}
		if c.DialCode == "" || domain.DigitKey(c.DialCode) != c.DialCode {
			return nil, fmt.Errorf("country %s: invalid dial code %q", c.Code, c.DialCode)
		}
		c.FlagURL = fmt.Sprintf(flagURLTemplate, c.Code)
		t.byCode[c.Code] = c
		t.list = append(t.list, c)
	}
	sort.SliceStable(t.list, func(i, j int) bool { return t.list[i].Name < t.list[j].Name })
	return t, nil
}

// All returns the wildcard entry followed by every country sorted by name.
func (t *Table) All() []Country {
	out := make([]Country, 0, len(t.list)+1)
	out = append(out, Country{Code: WildcardCode, Name: "All Countries"})
	return append(out, t.list...)
}

// Len returns the number of real countries in the table.
func (t *Table) Len() int { return len(t.list) }

// Lookup finds a country by ISO code, case-insensitively.
func (t *Table) Lookup(code string) (Country, bool) {
	c, ok := t.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Profile resolves a selection into a normalization profile. An empty code
// or "all" yields the wildcard profile.
func (t *Table) Profile(code string) (domain.CountryProfile, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, WildcardCode) {
		return domain.WildcardProfile(), nil
	}
	c, ok := t.Lookup(code)
	if !ok {
		return domain.CountryProfile{}, fmt.Errorf("%w: %s", domain.ErrUnknownCountry, code)
	}
	return domain.CountryProfile{DialCode: c.DialCode}, nil
}
