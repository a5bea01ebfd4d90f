package auth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ClaimPaths holds the expressions used to pull profile fields out of claims.
type ClaimPaths struct {
	FirstName string
	LastName  string
	JobTitle  string
	Roles     string
}

// DefaultClaimPaths matches the claim names issued by Entra ID.
func DefaultClaimPaths() ClaimPaths {
	return ClaimPaths{
		FirstName: "given_name",
		LastName:  "family_name",
		JobTitle:  "jobTitle",
		Roles:     "roles",
	}
}

// ClaimEvaluator evaluates a path expression against decoded claims.
type ClaimEvaluator interface {
	Evaluate(expr string, data any) (any, error)
}

// ProfileFromAccount projects an account into a UserProfile.
// Expressions that fail or yield the wrong type leave the field empty.
func ProfileFromAccount(acct Account, paths ClaimPaths, eval ClaimEvaluator) UserProfile {
	p := UserProfile{
		DisplayName: acct.DisplayName,
		Email:       acct.Username,
		Username:    acct.Username,
		Roles:       []string{},
		Claims:      acct.Claims,
	}
	if len(acct.Claims) == 0 || eval == nil {
		return p
	}
	data := map[string]any(acct.Claims)
	p.FirstName = evalString(eval, paths.FirstName, data)
	p.LastName = evalString(eval, paths.LastName, data)
	p.JobTitle = evalString(eval, paths.JobTitle, data)
	p.Roles = evalStrings(eval, paths.Roles, data)
	return p
}

func evalString(eval ClaimEvaluator, expr string, data any) string {
	if expr == "" {
		return ""
	}
	v, err := eval.Evaluate(expr, data)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func evalStrings(eval ClaimEvaluator, expr string, data any) []string {
	out := []string{}
	if expr == "" {
		return out
	}
	v, err := eval.Evaluate(expr, data)
	if err != nil {
		return out
	}
	switch vv := v.(type) {
	case []string:
		return append(out, vv...)
	case []any:
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = append(out, vv)
	}
	return out
}

// hiddenClaims are protocol claims that carry no meaning for display.
var hiddenClaims = map[string]bool{"nonce": true, "aud": true, "iss": true}

// ClaimEntries lists claims for display, sorted by name.
// Arrays and objects are JSON encoded; nulls render as "null".
func ClaimEntries(claims Claims) []ClaimEntry {
	out := make([]ClaimEntry, 0, len(claims))
	for name, value := range claims {
		if hiddenClaims[name] {
			continue
		}
		out = append(out, ClaimEntry{Name: name, Value: formatClaimValue(value)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func formatClaimValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return "null"
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case []any, map[string]any:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	default:
		return fmt.Sprint(vv)
	}
}
