package fortigate

import (
	"sort"
	"strings"

	"policy-merger/internal/engine"
	"policy-merger/internal/model"
)

// profileFields are the optional security-profile setters on a policy.
// Any non-empty one implies utm-status enable.
var profileFields = []string{
	"av-profile",
	"webfilter-profile",
	"dnsfilter-profile",
	"ips-sensor",
	"application-list",
	"ssl-ssh-profile",
}

// GenerateOptions configure script generation.
type GenerateOptions struct {
	// IncludeObjects emits the catalog's object sections before the
	// policy block.
	IncludeObjects bool
	// Interfaces drives interface-token normalization.
	Interfaces InterfaceMap
	// NATTruthy lists the spellings that enable NAT.
	NATTruthy []string
	// MaxNameLength bounds disambiguated policy names.
	MaxNameLength int
}

// DefaultGenerateOptions match FortiManager export conventions.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		IncludeObjects: true,
		Interfaces: InterfaceMap{
			SSLVPNPlaceholder: "sslvpn_tun_intf",
			SSLVPNInterface:   "ssl.root",
			ZonePrefix:        "_",
		},
		NATTruthy:     []string{"enable", "1", "true", "yes"},
		MaxNameLength: 35,
	}
}

// Generate renders rules, and optionally a catalog's objects, as a
// FortiOS CLI script. Object entries are sorted by name for
// determinism; policy order is caller-significant and preserved.
func Generate(rules []*model.Rule, catalog *ObjectCatalog, opts GenerateOptions) string {
	var sections []string
	sections = append(sections, "# Generated by policy-merger\n")

	if opts.IncludeObjects && catalog != nil {
		for _, block := range [][]string{
			generateAddresses(catalog.Addresses),
			generateAddrGroups(catalog.AddrGroups),
			generateServices(catalog.Services),
			generateServiceGroups(catalog.ServiceGroups),
			generateVIPs(catalog.VIPs),
			generateIPPools(catalog.IPPools),
		} {
			if len(block) > 0 {
				sections = append(sections, strings.Join(block, "\n")+"\n")
			}
		}
	}

	if block := generatePolicies(rules, catalog, opts); len(block) > 0 {
		sections = append(sections, strings.Join(block, "\n")+"\n")
	}

	return strings.Join(sections, "\n")
}

// quote makes a value safe as a quoted CLI token: embedded double
// quotes become single quotes.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `'`) + `"`
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, " ")
}

func emitBlock(header string, lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, 0, len(lines)+2)
	out = append(out, header)
	out = append(out, lines...)
	out = append(out, "end")
	return out
}

func emitEditBlock(name string, setters []string) []string {
	lines := []string{"    edit " + quote(name)}
	for _, s := range setters {
		if s != "" {
			lines = append(lines, "        "+s)
		}
	}
	lines = append(lines, "    next")
	return lines
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func generateAddresses(addresses map[string]*Address) []string {
	var lines []string
	for _, name := range sortedNames(addresses) {
		a := addresses[name]
		setters := []string{"set subnet " + a.IP + " " + a.Mask}
		if a.Comment != "" {
			setters = append(setters, "set comment "+quote(a.Comment))
		}
		lines = append(lines, emitEditBlock(a.Name, setters)...)
	}
	return emitBlock("config firewall address", lines)
}

func generateAddrGroups(groups map[string]*AddressGroup) []string {
	var lines []string
	for _, name := range sortedNames(groups) {
		g := groups[name]
		var setters []string
		if len(g.Members) > 0 {
			setters = append(setters, "set member "+quoteAll(sortedUnique(g.Members)))
		}
		if g.Comment != "" {
			setters = append(setters, "set comment "+quote(g.Comment))
		}
		lines = append(lines, emitEditBlock(g.Name, setters)...)
	}
	return emitBlock("config firewall addrgrp", lines)
}

func generateServices(services map[string]*Service) []string {
	var lines []string
	for _, name := range sortedNames(services) {
		s := services[name]
		var setters []string
		if s.TCPPortrange != "" {
			setters = append(setters, "set tcp-portrange "+s.TCPPortrange)
		}
		if s.UDPPortrange != "" {
			setters = append(setters, "set udp-portrange "+s.UDPPortrange)
		}
		if s.Comment != "" {
			setters = append(setters, "set comment "+quote(s.Comment))
		}
		lines = append(lines, emitEditBlock(s.Name, setters)...)
	}
	return emitBlock("config firewall service custom", lines)
}

func generateServiceGroups(groups map[string]*ServiceGroup) []string {
	var lines []string
	for _, name := range sortedNames(groups) {
		g := groups[name]
		var setters []string
		if len(g.Members) > 0 {
			setters = append(setters, "set member "+quoteAll(sortedUnique(g.Members)))
		}
		if g.Comment != "" {
			setters = append(setters, "set comment "+quote(g.Comment))
		}
		lines = append(lines, emitEditBlock(g.Name, setters)...)
	}
	return emitBlock("config firewall service group", lines)
}

func generateVIPs(vips map[string]*VIP) []string {
	var lines []string
	for _, name := range sortedNames(vips) {
		v := vips[name]
		setters := []string{
			"set extip " + v.ExtIP,
			"set mappedip " + quote(v.MappedIP),
		}
		if v.ExtIntf != "" {
			setters = append(setters, "set extintf "+quote(v.ExtIntf))
		}
		if v.PortForward {
			setters = append(setters, "set portforward enable")
		}
		if v.ExtPort != "" {
			setters = append(setters, "set extport "+v.ExtPort)
		}
		if v.MappedPort != "" {
			setters = append(setters, "set mappedport "+v.MappedPort)
		}
		if v.Comment != "" {
			setters = append(setters, "set comment "+quote(v.Comment))
		}
		lines = append(lines, emitEditBlock(v.Name, setters)...)
	}
	return emitBlock("config firewall vip", lines)
}

func generateIPPools(pools map[string]*IPPool) []string {
	var lines []string
	for _, name := range sortedNames(pools) {
		p := pools[name]
		setters := []string{
			"set startip " + p.StartIP,
			"set endip " + p.EndIP,
		}
		if p.Type != "" {
			setters = append(setters, "set type "+p.Type)
		}
		if p.Comment != "" {
			setters = append(setters, "set comment "+quote(p.Comment))
		}
		lines = append(lines, emitEditBlock(p.Name, setters)...)
	}
	return emitBlock("config firewall ippool", lines)
}

func generatePolicies(rules []*model.Rule, catalog *ObjectCatalog, opts GenerateOptions) []string {
	if len(rules) == 0 {
		return nil
	}
	names, _ := engine.BuildUniqueNames(rules, opts.MaxNameLength)
	catalogNames := catalog.Names()

	var lines []string
	for i, rule := range rules {
		srcintf := NormalizeInterfaces(rule.Field("srcintf"), opts.Interfaces)
		dstintf := NormalizeInterfaces(rule.Field("dstintf"), opts.Interfaces)
		srcaddr := CollapseWildcard(splitPolicyValues(rule.Field("srcaddr"), catalogNames), "all", "any")
		dstaddr := CollapseWildcard(splitPolicyValues(rule.Field("dstaddr"), catalogNames), "all", "any")
		service := CollapseWildcard(splitPolicyValues(rule.Field("service"), catalogNames), "ALL")

		setters := []string{
			"set name " + quote(names[i]),
			setterOrDefault("srcintf", srcintf, "any"),
			setterOrDefault("dstintf", dstintf, "any"),
			setterOrDefault("srcaddr", srcaddr, "all"),
			setterOrDefault("dstaddr", dstaddr, "all"),
			setterOrDefault("service", service, "ALL"),
			"set schedule " + quote(fieldOrDefault(rule, "schedule", "always")),
			"set action " + fieldOrDefault(rule, "action", "accept"),
		}
		if isTruthy(rule.Field("nat"), opts.NATTruthy) {
			setters = append(setters, "set nat enable")
		}
		setters = append(setters, profileSetters(rule)...)

		lines = append(lines, "    edit 0")
		for _, s := range setters {
			if s != "" {
				lines = append(lines, "        "+s)
			}
		}
		lines = append(lines, "    next")
	}
	return emitBlock("config firewall policy", lines)
}

// splitPolicyValues layers the tokenization strategies: catalog-aware
// greedy longest match when a catalog is known, colon-pairing when the
// value shows the split-name pattern, naive whitespace split otherwise.
func splitPolicyValues(value string, catalogNames map[string]bool) []string {
	if len(catalogNames) > 0 {
		return SplitWithCatalog(value, catalogNames)
	}
	if strings.Contains(value, ":") {
		return SplitColonPairs(value)
	}
	return SplitValues(value)
}

func setterOrDefault(key string, values []string, def string) string {
	if len(values) == 0 {
		values = []string{def}
	}
	return "set " + key + " " + quoteAll(values)
}

func fieldOrDefault(rule *model.Rule, field, def string) string {
	if v := strings.TrimSpace(rule.Field(field)); v != "" {
		return v
	}
	return def
}

func isTruthy(value string, truthy []string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, t := range truthy {
		if v == t {
			return true
		}
	}
	return false
}

// profileSetters emits the optional security-profile and logging
// setters, with utm-status enable ahead of any profile field.
func profileSetters(rule *model.Rule) []string {
	var setters []string
	for _, f := range profileFields {
		if v := strings.TrimSpace(profileField(rule, f)); v != "" {
			setters = append(setters, "set "+f+" "+quote(v))
		}
	}
	if len(setters) > 0 {
		setters = append([]string{"set utm-status enable"}, setters...)
	}
	if v := strings.TrimSpace(profileField(rule, "logtraffic")); v != "" {
		setters = append(setters, "set logtraffic "+v)
	}
	return setters
}

// profileField tolerates both hyphenated and underscored column
// spellings seen across export variants.
func profileField(rule *model.Rule, name string) string {
	if v := rule.Field(name); v != "" {
		return v
	}
	return rule.Field(strings.ReplaceAll(name, "-", "_"))
}

func sortedUnique(names []string) []string {
	out := dedupe(names)
	sort.Strings(out)
	return out
}
