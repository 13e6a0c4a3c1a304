package fortigate

import (
	"bufio"
	"regexp"
	"strings"
)

var quotedToken = regexp.MustCompile(`"([^"]*)"`)

// entry is one edit block inside a section: the edited name and its
// set attributes with raw (still-quoted) values.
type entry struct {
	name  string
	attrs map[string]string
	order []string
}

// Parse scans FortiOS configuration text into an ObjectCatalog. The
// scanner is a flat single pass: it tracks the current section and
// current entry, records recognized set lines, and skips anything it
// does not understand rather than failing.
func Parse(text string) *ObjectCatalog {
	catalog := NewObjectCatalog()
	scanner := bufio.NewScanner(strings.NewReader(text))

	var section string
	var current *entry
	var entries []entry

	flushSection := func() {
		switch section {
		case "config firewall address":
			catalog.addAddresses(entries)
		case "config firewall addrgrp":
			catalog.addAddrGroups(entries)
		case "config firewall service custom":
			catalog.addServices(entries)
		case "config firewall service group":
			catalog.addServiceGroups(entries)
		case "config firewall vip":
			catalog.addVIPs(entries)
		case "config firewall ippool":
			catalog.addIPPools(entries)
		case "config firewall policy":
			catalog.addPolicies(entries)
		}
		section = ""
		current = nil
		entries = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if section == "" {
			if strings.HasPrefix(line, "config firewall ") {
				section = line
			}
			continue
		}
		switch {
		case line == "end":
			flushSection()
		case strings.HasPrefix(line, "edit "):
			name := unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit ")))
			entries = append(entries, entry{name: name, attrs: make(map[string]string)})
			current = &entries[len(entries)-1]
		case line == "next":
			current = nil
		case strings.HasPrefix(line, "set ") && current != nil:
			rest := strings.TrimSpace(strings.TrimPrefix(line, "set "))
			key, value, ok := strings.Cut(rest, " ")
			if !ok {
				continue
			}
			if _, dup := current.attrs[key]; !dup {
				current.order = append(current.order, key)
			}
			current.attrs[key] = strings.TrimSpace(value)
		}
	}
	// An unterminated section still contributes what it had; the
	// parser tolerates unmatched edit/next.
	if section != "" {
		flushSection()
	}
	return catalog
}

// unquote unwraps a value in matching double quotes.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// members extracts every quoted token on a set-member line.
func members(value string) []string {
	var out []string
	for _, m := range quotedToken.FindAllStringSubmatch(value, -1) {
		out = append(out, m[1])
	}
	return out
}

func (c *ObjectCatalog) addAddresses(entries []entry) {
	for _, e := range entries {
		a := &Address{Name: e.name, Comment: unquote(e.attrs["comment"])}
		if parts := strings.Fields(e.attrs["subnet"]); len(parts) >= 2 {
			a.IP, a.Mask = parts[0], parts[1]
		}
		c.Addresses[e.name] = a
	}
}

func (c *ObjectCatalog) addAddrGroups(entries []entry) {
	for _, e := range entries {
		c.AddrGroups[e.name] = &AddressGroup{
			Name:    e.name,
			Members: members(e.attrs["member"]),
			Comment: unquote(e.attrs["comment"]),
		}
	}
}

func (c *ObjectCatalog) addServices(entries []entry) {
	for _, e := range entries {
		c.Services[e.name] = &Service{
			Name:         e.name,
			TCPPortrange: unquote(e.attrs["tcp-portrange"]),
			UDPPortrange: unquote(e.attrs["udp-portrange"]),
			Comment:      unquote(e.attrs["comment"]),
		}
	}
}

func (c *ObjectCatalog) addServiceGroups(entries []entry) {
	for _, e := range entries {
		c.ServiceGroups[e.name] = &ServiceGroup{
			Name:    e.name,
			Members: members(e.attrs["member"]),
			Comment: unquote(e.attrs["comment"]),
		}
	}
}

func (c *ObjectCatalog) addVIPs(entries []entry) {
	for _, e := range entries {
		c.VIPs[e.name] = &VIP{
			Name:        e.name,
			ExtIP:       unquote(e.attrs["extip"]),
			MappedIP:    unquote(e.attrs["mappedip"]),
			ExtIntf:     unquote(e.attrs["extintf"]),
			PortForward: strings.EqualFold(strings.TrimSpace(e.attrs["portforward"]), "enable"),
			ExtPort:     unquote(e.attrs["extport"]),
			MappedPort:  unquote(e.attrs["mappedport"]),
			Comment:     unquote(e.attrs["comment"]),
		}
	}
}

func (c *ObjectCatalog) addIPPools(entries []entry) {
	for _, e := range entries {
		c.IPPools[e.name] = &IPPool{
			Name:    e.name,
			StartIP: unquote(e.attrs["startip"]),
			EndIP:   unquote(e.attrs["endip"]),
			Type:    unquote(e.attrs["type"]),
			Comment: unquote(e.attrs["comment"]),
		}
	}
}

// addPolicies keeps policy entries as raw attribute maps in config
// order. Multi-name values become space-joined name lists; the edit
// id is recorded as policyid when no explicit one was set.
func (c *ObjectCatalog) addPolicies(entries []entry) {
	for _, e := range entries {
		row := make(map[string]string, len(e.attrs)+1)
		for _, key := range e.order {
			value := e.attrs[key]
			if names := members(value); len(names) > 0 {
				row[key] = strings.Join(names, " ")
				continue
			}
			row[key] = unquote(value)
		}
		if _, ok := row["policyid"]; !ok {
			row["policyid"] = e.name
		}
		c.Policies = append(c.Policies, row)
	}
}
