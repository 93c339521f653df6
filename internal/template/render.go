// Package template renders {{placeholder}} tokens in message templates.
package template

import "regexp"

var tokenRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Vars holds the substitution values supplied by the popover lead context.
type Vars struct {
	Name    string
	Address string
	Price   string
	Phone   string
}

func (v Vars) lookup(key string) (string, bool) {
	switch key {
	case "name":
		return v.Name, v.Name != ""
	case "address":
		return v.Address, v.Address != ""
	case "price":
		return v.Price, v.Price != ""
	case "phone":
		return v.Phone, v.Phone != ""
	}
	return "", false
}

// Render substitutes each {{key}} token with the matching variable.
// Tokens without a matching value are left verbatim, not deleted.
func Render(body string, vars Vars) string {
	return tokenRe.ReplaceAllStringFunc(body, func(token string) string {
		key := tokenRe.FindStringSubmatch(token)[1]
		if val, ok := vars.lookup(key); ok {
			return val
		}
		return token
	})
}
