package list

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/erazemk/gimmie/internal/model"
)

const (
	maxNameLength    = 255
	maxLinkLength    = 2000
	maxAddedByLength = 100
)

var (
	maxCost     = decimal.NewFromInt(1_000_000)
	validHost   = regexp.MustCompile(`^[a-z0-9.-]+$`)
	linkSchemes = map[string]bool{"http": true, "https": true, "ftp": true}
)

// Fields are the user-supplied attributes of an item.
type Fields struct {
	Name    string
	Cost    model.Cost
	Link    string
	Type    model.Category
	AddedBy string
}

// Normalize validates f and returns the cleaned-up fields: strings trimmed,
// a missing type set to want, a missing contributor set to Unknown and a
// scheme added to bare links.
func (f Fields) Normalize() (Fields, error) {
	var err error
	if f.Name, err = normalizeName(f.Name); err != nil {
		return Fields{}, err
	}
	if err = validateCost(f.Cost); err != nil {
		return Fields{}, err
	}
	if f.Link, err = normalizeLink(f.Link); err != nil {
		return Fields{}, err
	}
	if f.Type, err = normalizeType(f.Type); err != nil {
		return Fields{}, err
	}
	if f.AddedBy, err = normalizeAddedBy(f.AddedBy); err != nil {
		return Fields{}, err
	}
	return f, nil
}

// Patch is a partial update. Nil fields are left unchanged. A non-nil Cost
// holding no value clears the cost; an empty Link clears the link.
type Patch struct {
	Name *string
	Cost *model.Cost
	Link *string
	Type *model.Category
}

// apply merges p into item and validates the result.
func (p Patch) apply(item *model.Item) error {
	f := Fields{
		Name:    item.Name,
		Cost:    item.Cost,
		Link:    item.Link,
		Type:    item.Type,
		AddedBy: item.AddedBy,
	}
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Cost != nil {
		f.Cost = *p.Cost
	}
	if p.Link != nil {
		f.Link = *p.Link
	}
	if p.Type != nil {
		if *p.Type == "" {
			return invalid("type", "must be want or need")
		}
		f.Type = *p.Type
	}

	f, err := f.Normalize()
	if err != nil {
		return err
	}
	item.Name = f.Name
	item.Cost = f.Cost
	item.Link = f.Link
	item.Type = f.Type
	return nil
}

func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

func normalizeName(name string) (string, error) {
	name = sanitize(name)
	if name == "" {
		return "", invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", invalid("name", "exceeds 255 characters")
	}
	if strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) < 0 {
		return "", invalid("name", "must contain at least one letter or number")
	}
	return name, nil
}

func validateCost(c model.Cost) error {
	if !c.Valid {
		return nil
	}
	switch {
	case c.Decimal.IsNegative():
		return invalid("cost", "must not be negative")
	case c.Decimal.GreaterThan(maxCost):
		return invalid("cost", "exceeds 1000000")
	case c.Decimal.Exponent() < -2:
		return invalid("cost", "has more than 2 decimal places")
	}
	return nil
}

func normalizeLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", nil
	}
	if len(link) > maxLinkLength {
		return "", invalid("link", "exceeds 2000 characters")
	}
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", invalid("link", "is not a valid URL")
	}
	if !linkSchemes[strings.ToLower(u.Scheme)] {
		return "", invalid("link", "must use http, https or ftp")
	}
	if u.Host == "" || !validHost.MatchString(strings.ToLower(u.Hostname())) {
		return "", invalid("link", "has an invalid host")
	}
	return link, nil
}

func normalizeType(c model.Category) (model.Category, error) {
	if c == "" {
		return model.CategoryWant, nil
	}
	if !c.Valid() {
		return "", invalid("type", "must be want or need")
	}
	return c, nil
}

func normalizeAddedBy(name string) (string, error) {
	name = sanitize(name)
	if name == "" {
		return model.UnknownMember, nil
	}
	if utf8.RuneCountInString(name) > maxAddedByLength {
		return "", invalid("added_by", "exceeds 100 characters")
	}
	return name, nil
}
