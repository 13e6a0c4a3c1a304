package fortigate

import (
	"strings"
	"testing"

	"policy-merger/internal/model"
)

func makeRule(kv map[string]string) *model.Rule {
	return model.NewRule(kv, "FGT")
}

func TestGenerateSimplePolicy(t *testing.T) {
	rules := []*model.Rule{makeRule(map[string]string{
		"name":       "AllowWeb",
		"srcintf":    "port1",
		"dstintf":    "port2",
		"srcaddr":    "HQ-NET",
		"dstaddr":    "DC-NET",
		"service":    "HTTP HTTPS",
		"schedule":   "always",
		"action":     "accept",
		"nat":        "enable",
		"ips-sensor": "Block-ALL",
	})}

	cli := Generate(rules, nil, DefaultGenerateOptions())
	for _, want := range []string{
		"config firewall policy",
		`set name "AllowWeb"`,
		`set srcintf "port1"`,
		`set service "HTTP" "HTTPS"`,
		`set schedule "always"`,
		"set action accept",
		"set nat enable",
		"set utm-status enable",
		`set ips-sensor "Block-ALL"`,
	} {
		if !strings.Contains(cli, want) {
			t.Errorf("generated script missing %q\n%s", want, cli)
		}
	}
}

func TestGeneratePolicyDefaults(t *testing.T) {
	rules := []*model.Rule{makeRule(map[string]string{"name": "Bare"})}
	cli := Generate(rules, nil, DefaultGenerateOptions())
	for _, want := range []string{
		`set srcintf "any"`,
		`set dstintf "any"`,
		`set srcaddr "all"`,
		`set dstaddr "all"`,
		`set service "ALL"`,
		`set schedule "always"`,
		"set action accept",
	} {
		if !strings.Contains(cli, want) {
			t.Errorf("generated script missing default %q\n%s", want, cli)
		}
	}
	if strings.Contains(cli, "set nat enable") {
		t.Errorf("nat must stay off without a truthy value")
	}
	if strings.Contains(cli, "set utm-status enable") {
		t.Errorf("utm must stay off without profile fields")
	}
}

func TestGenerateColonPairedAddresses(t *testing.T) {
	rules := []*model.Rule{makeRule(map[string]string{
		"name":    "PrefixExpand",
		"srcaddr": "all",
		"dstaddr": "VLAN201: Office VLAN201: WIFI VLAN10: SRV",
		"service": "ALL",
	})}
	cli := Generate(rules, nil, DefaultGenerateOptions())
	if !strings.Contains(cli, `set dstaddr "VLAN201: Office" "VLAN201: WIFI" "VLAN10: SRV"`) {
		t.Errorf("colon-paired names not recovered:\n%s", cli)
	}
}

func TestGenerateServiceDominance(t *testing.T) {
	rules := []*model.Rule{makeRule(map[string]string{
		"name":    "Wild",
		"service": "HTTP ALL SSH",
		"srcaddr": "HQ-NET any",
	})}
	cli := Generate(rules, nil, DefaultGenerateOptions())
	if !strings.Contains(cli, `set service "ALL"`) || strings.Contains(cli, `"HTTP"`) {
		t.Errorf("ALL must absorb the service list:\n%s", cli)
	}
	if !strings.Contains(cli, `set srcaddr "all"`) {
		t.Errorf("any must collapse the address list to all:\n%s", cli)
	}
}

func TestGenerateCatalogAwareTokens(t *testing.T) {
	catalog := NewObjectCatalog()
	catalog.Addresses["Branch Office Net"] = &Address{Name: "Branch Office Net", IP: "10.30.0.0", Mask: "255.255.0.0"}
	catalog.Addresses["DC-NET"] = &Address{Name: "DC-NET", IP: "10.20.0.0", Mask: "255.255.0.0"}

	rules := []*model.Rule{makeRule(map[string]string{
		"name":    "Branches",
		"srcaddr": "Branch Office Net",
		"dstaddr": "DC-NET",
		"service": "HTTPS",
	})}
	opts := DefaultGenerateOptions()
	opts.IncludeObjects = false
	cli := Generate(rules, catalog, opts)
	if !strings.Contains(cli, `set srcaddr "Branch Office Net"`) {
		t.Errorf("catalog name with spaces must stay one token:\n%s", cli)
	}
}

func TestGenerateInterfaceNormalization(t *testing.T) {
	rules := []*model.Rule{makeRule(map[string]string{
		"name":    "VPN",
		"srcintf": "sslvpn_tun_intf",
		"dstintf": "_dmz.port5",
	})}
	cli := Generate(rules, nil, DefaultGenerateOptions())
	if !strings.Contains(cli, `set srcintf "ssl.root"`) {
		t.Errorf("SSL-VPN placeholder not mapped:\n%s", cli)
	}
	if !strings.Contains(cli, `set dstintf "dmz" "port5"`) {
		t.Errorf("zone shorthand not expanded:\n%s", cli)
	}
}

func TestGenerateDisambiguatesNames(t *testing.T) {
	rules := []*model.Rule{
		makeRule(map[string]string{"name": "web"}),
		makeRule(map[string]string{"name": "web"}),
	}
	cli := Generate(rules, nil, DefaultGenerateOptions())
	if !strings.Contains(cli, `set name "web"`) || !strings.Contains(cli, `set name "web-1"`) {
		t.Errorf("duplicate names must be disambiguated:\n%s", cli)
	}
}

func TestGenerateQuoting(t *testing.T) {
	rules := []*model.Rule{makeRule(map[string]string{"name": `say "hi"`})}
	cli := Generate(rules, nil, DefaultGenerateOptions())
	if !strings.Contains(cli, `set name "say 'hi'"`) {
		t.Errorf("embedded quotes must become single quotes:\n%s", cli)
	}
}

func TestGenerateObjectSectionsSortedAndOrdered(t *testing.T) {
	catalog := NewObjectCatalog()
	catalog.Addresses["HQ-NET"] = &Address{Name: "HQ-NET", IP: "10.10.0.0", Mask: "255.255.0.0"}
	catalog.Addresses["DC-NET"] = &Address{Name: "DC-NET", IP: "10.20.0.0", Mask: "255.255.0.0"}
	catalog.AddrGroups["Sites"] = &AddressGroup{Name: "Sites", Members: []string{"HQ-NET", "DC-NET"}}
	catalog.Services["Web"] = &Service{Name: "Web", TCPPortrange: "80-80 443-443"}
	catalog.ServiceGroups["Common"] = &ServiceGroup{Name: "Common", Members: []string{"Web"}}
	catalog.VIPs["VIP1"] = &VIP{Name: "VIP1", ExtIP: "1.2.3.4", MappedIP: "10.1.1.10"}
	catalog.IPPools["Pool1"] = &IPPool{Name: "Pool1", StartIP: "5.5.5.5", EndIP: "5.5.5.10", Type: "overload"}

	cli := Generate(nil, catalog, DefaultGenerateOptions())

	sections := []string{
		"config firewall address",
		"config firewall addrgrp",
		"config firewall service custom",
		"config firewall service group",
		"config firewall vip",
		"config firewall ippool",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(cli, s)
		if idx < 0 {
			t.Fatalf("missing section %q:\n%s", s, cli)
		}
		if idx < last {
			t.Errorf("section %q out of order", s)
		}
		last = idx
	}
	// Entries within a section are name-sorted.
	if strings.Index(cli, `edit "DC-NET"`) > strings.Index(cli, `edit "HQ-NET"`) {
		t.Errorf("address entries must be sorted by name")
	}
}
