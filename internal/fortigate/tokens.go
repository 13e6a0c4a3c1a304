package fortigate

import (
	"strings"

	"policy-merger/internal/model"
)

// SplitValues tokenizes a multi-value cell by whitespace with
// order-preserving de-duplication. The fallback strategy when neither
// a catalog nor the colon-pairing heuristic applies.
func SplitValues(value string) []string {
	return dedupe(model.Tokenize(value))
}

// SplitColonPairs recovers names like "VLAN201: Office" that were
// naively space-split: any token ending in ':' is greedily paired with
// the token that follows it. A trailing bare ':' with nothing after it
// is stripped.
func SplitColonPairs(value string) []string {
	tokens := model.Tokenize(value)
	var out []string
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if strings.HasSuffix(t, ":") {
			if i+1 < len(tokens) {
				out = append(out, t+" "+tokens[i+1])
				i++
				continue
			}
			t = strings.TrimSuffix(t, ":")
			if t == "" {
				continue
			}
		}
		out = append(out, t)
	}
	return dedupe(out)
}

// SplitWithCatalog tokenizes against a set of known object names,
// possibly containing spaces. At each position the longest contiguous
// token span exactly matching a known name wins; an unmatched token is
// kept as-is (a catalog miss is not an error).
func SplitWithCatalog(value string, names map[string]bool) []string {
	tokens := model.Tokenize(value)
	if len(names) == 0 {
		return dedupe(tokens)
	}
	var out []string
	for i := 0; i < len(tokens); {
		matched := false
		for j := len(tokens); j > i; j-- {
			span := strings.Join(tokens[i:j], " ")
			if names[span] {
				out = append(out, span)
				i = j
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return dedupe(out)
}

// InterfaceMap configures interface-token normalization.
type InterfaceMap struct {
	// SSLVPNPlaceholder is the export's stand-in for the SSL-VPN
	// tunnel, rewritten to SSLVPNInterface.
	SSLVPNPlaceholder string
	SSLVPNInterface   string
	// ZonePrefix marks the "zone.interface" shorthand; a prefixed
	// token expands into the zone and the interface as two tokens.
	ZonePrefix string
}

// NormalizeInterfaces tokenizes an interface cell, maps the SSL-VPN
// placeholder to its real interface, expands the zone shorthand and
// de-duplicates preserving order.
func NormalizeInterfaces(value string, m InterfaceMap) []string {
	var out []string
	for _, t := range model.Tokenize(value) {
		if m.SSLVPNPlaceholder != "" && t == m.SSLVPNPlaceholder {
			out = append(out, m.SSLVPNInterface)
			continue
		}
		if m.ZonePrefix != "" && strings.HasPrefix(t, m.ZonePrefix) {
			rest := strings.TrimPrefix(t, m.ZonePrefix)
			if zone, intf, ok := strings.Cut(rest, "."); ok && zone != "" && intf != "" {
				out = append(out, zone, intf)
				continue
			}
		}
		out = append(out, t)
	}
	return dedupe(out)
}

// CollapseWildcard applies the dominance policy: if any token
// case-insensitively equals the canonical wildcard or one of its
// aliases, the whole list collapses to the canonical token. Models
// "all"/"any"/"ALL" objects absorbing everything else.
func CollapseWildcard(tokens []string, canonical string, aliases ...string) []string {
	for _, t := range tokens {
		if strings.EqualFold(t, canonical) {
			return []string{canonical}
		}
		for _, a := range aliases {
			if strings.EqualFold(t, a) {
				return []string{canonical}
			}
		}
	}
	return tokens
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
