// Package fortigate implements the bidirectional codec between
// structured firewall objects/rules and FortiOS CLI configuration
// text: block generation on one side, a tolerant block scanner on the
// other.
package fortigate

// Address is one firewall address object (ipmask form).
type Address struct {
	Name    string
	IP      string
	Mask    string
	Comment string
}

// AddressGroup names a set of address members.
type AddressGroup struct {
	Name    string
	Members []string
	Comment string
}

// Service is one custom service with optional tcp/udp port ranges,
// e.g. "80-80 443-443".
type Service struct {
	Name         string
	TCPPortrange string
	UDPPortrange string
	Comment      string
}

// ServiceGroup names a set of service members.
type ServiceGroup struct {
	Name    string
	Members []string
	Comment string
}

// VIP is a virtual IP mapping an external address to an internal one.
type VIP struct {
	Name        string
	ExtIP       string
	MappedIP    string
	ExtIntf     string
	PortForward bool
	ExtPort     string
	MappedPort  string
	Comment     string
}

// IPPool is a NAT pool.
type IPPool struct {
	Name    string
	StartIP string
	EndIP   string
	Type    string // overload|one-to-one
	Comment string
}

// ObjectCatalog holds every named object known when generating or
// parsing configuration. Names are case-sensitive and unique within a
// kind.
type ObjectCatalog struct {
	Addresses     map[string]*Address
	AddrGroups    map[string]*AddressGroup
	Services      map[string]*Service
	ServiceGroups map[string]*ServiceGroup
	VIPs          map[string]*VIP
	IPPools       map[string]*IPPool

	// Policies are raw policy entries captured by the parser, in
	// config order; the generator does not consume them.
	Policies []map[string]string
}

// NewObjectCatalog returns an empty catalog with all kinds allocated.
func NewObjectCatalog() *ObjectCatalog {
	return &ObjectCatalog{
		Addresses:     make(map[string]*Address),
		AddrGroups:    make(map[string]*AddressGroup),
		Services:      make(map[string]*Service),
		ServiceGroups: make(map[string]*ServiceGroup),
		VIPs:          make(map[string]*VIP),
		IPPools:       make(map[string]*IPPool),
	}
}

// Names returns the full set of known object names across every kind,
// for catalog-aware tokenization.
func (c *ObjectCatalog) Names() map[string]bool {
	if c == nil {
		return nil
	}
	names := make(map[string]bool)
	for n := range c.Addresses {
		names[n] = true
	}
	for n := range c.AddrGroups {
		names[n] = true
	}
	for n := range c.Services {
		names[n] = true
	}
	for n := range c.ServiceGroups {
		names[n] = true
	}
	for n := range c.VIPs {
		names[n] = true
	}
	for n := range c.IPPools {
		names[n] = true
	}
	return names
}
