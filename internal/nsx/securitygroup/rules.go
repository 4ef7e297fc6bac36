// Package securitygroup builds the firewall documents of the NSX control
// plane and adds virtual NICs to security groups.
package securitygroup

import (
	"encoding/xml"
	"strconv"

	"github.com/pkg/errors"
)

const (
	ActionAllow = "allow"
	ActionDeny  = "deny"

	ContainerSecurityGroup = "SecurityGroup"
	ContainerIPv4Address   = "Ipv4Address"
)

type Section struct {
	XMLName xml.Name `xml:"section"`
	ID      string   `xml:"id,attr,omitempty"`
	Name    string   `xml:"name,attr"`
	Rules   []*Rule  `xml:"rule"`
}

type Rule struct {
	XMLName       xml.Name      `xml:"rule"`
	ID            string        `xml:"id,attr,omitempty"`
	Name          string        `xml:"name"`
	Action        string        `xml:"action"`
	AppliedToList []Container   `xml:"appliedToList>appliedTo"`
	Sources       *Sources      `xml:"sources"`
	Destinations  *Destinations `xml:"destinations"`
	Services      *Services     `xml:"services"`
	PacketType    string        `xml:"packetType,omitempty"`
	Direction     string        `xml:"direction,omitempty"`
}

type Container struct {
	Type  string `xml:"type"`
	Value string `xml:"value"`
}

type Sources struct {
	Excluded bool        `xml:"excluded,attr"`
	Source   []Container `xml:"source"`
}

type Destinations struct {
	Excluded    bool        `xml:"excluded,attr"`
	Destination []Container `xml:"destination"`
}

type Services struct {
	Service []Service `xml:"service"`
}

// Service holds either Protocol (a protocol number) or ProtocolName.
type Service struct {
	Protocol        string `xml:"protocol,omitempty"`
	ProtocolName    string `xml:"protocolName,omitempty"`
	DestinationPort string `xml:"destinationPort,omitempty"`
	SubProtocol     string `xml:"subProtocol,omitempty"`
	IcmpCode        string `xml:"icmpCode,omitempty"`
}

// ServiceSpec describes one service of a rule. Empty fields are left out of
// the document.
type ServiceSpec struct {
	Protocol string
	Port     string
	ICMPType string
	ICMPCode string
}

type RuleFlags struct {
	EtherType string
	Direction string
}

type RuleConfig struct {
	AppliedToID   string
	Name          string
	Action        string // defaults to ActionAllow
	AppliedToType string // defaults to ContainerSecurityGroup
	Source        *Container
	Destination   *Container
	Services      []ServiceSpec
	Flags         *RuleFlags
}

type RuleIDPair struct {
	NsxID     string `json:"nsx_id"`
	NeutronID string `json:"neutron_id"`
}

func BuildRule(cfg RuleConfig) *Rule {
	action := cfg.Action
	if action == "" {
		action = ActionAllow
	}
	appliedToType := cfg.AppliedToType
	if appliedToType == "" {
		appliedToType = ContainerSecurityGroup
	}

	rule := &Rule{
		Name:          cfg.Name,
		Action:        action,
		AppliedToList: []Container{{Type: appliedToType, Value: cfg.AppliedToID}},
	}
	if cfg.Source != nil {
		rule.Sources = &Sources{Source: []Container{*cfg.Source}}
	}
	if cfg.Destination != nil {
		rule.Destinations = &Destinations{Destination: []Container{*cfg.Destination}}
	}
	if len(cfg.Services) > 0 {
		rule.Services = &Services{}
		for _, spec := range cfg.Services {
			rule.Services.Service = append(rule.Services.Service, buildService(spec))
		}
	}
	if cfg.Flags != nil {
		rule.PacketType = cfg.Flags.EtherType
		rule.Direction = cfg.Flags.Direction
	}
	return rule
}

func buildService(spec ServiceSpec) Service {
	svc := Service{
		DestinationPort: spec.Port,
		SubProtocol:     spec.ICMPType,
		IcmpCode:        spec.ICMPCode,
	}
	if _, err := strconv.Atoi(spec.Protocol); err == nil {
		svc.Protocol = spec.Protocol
	} else {
		svc.ProtocolName = spec.Protocol
	}
	return svc
}

func BuildSectionWithRules(name string, rules []*Rule) *Section {
	return &Section{Name: name, Rules: rules}
}

// InsertRuleAtFront makes rule the first rule of section.
func InsertRuleAtFront(section *Section, rule *Rule) {
	section.Rules = append([]*Rule{rule}, section.Rules...)
}

func ContainerFor(securityGroupID string) Container {
	return Container{Type: ContainerSecurityGroup, Value: securityGroupID}
}

// RemoteContainerFor prefers the remote group over the remote address and
// returns nil when neither is set.
func RemoteContainerFor(remoteGroupID, remoteIPMac string) *Container {
	if remoteGroupID != "" {
		c := ContainerFor(remoteGroupID)
		return &c
	}
	if remoteIPMac != "" {
		return &Container{Type: ContainerIPv4Address, Value: remoteIPMac}
	}
	return nil
}

func Serialize(v interface{}) ([]byte, error) {
	data, err := xml.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize firewall document")
	}
	return data, nil
}

func ParseSection(data []byte) (*Section, error) {
	var section Section
	if err := xml.Unmarshal(data, &section); err != nil {
		return nil, errors.Wrap(err, "failed to parse firewall section")
	}
	return &section, nil
}

// ExtractRuleIDPairs reads the top-level rule elements of a response
// document, whatever its root element is.
func ExtractRuleIDPairs(data []byte) ([]RuleIDPair, error) {
	var doc struct {
		Rules []struct {
			ID   string `xml:"id,attr"`
			Name string `xml:"name"`
		} `xml:"rule"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse firewall response")
	}
	pairs := make([]RuleIDPair, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		pairs = append(pairs, RuleIDPair{NsxID: r.ID, NeutronID: r.Name})
	}
	return pairs, nil
}
