package codec

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"kubecmdb/internal/domain"
)

// AnsibleCodec exports the snapshot's nodes as an Ansible inventory, one
// group per node role. Other models are not hosts and are left out.
type AnsibleCodec struct{}

// NewAnsibleCodec creates a new Ansible codec
func NewAnsibleCodec() *AnsibleCodec {
	return &AnsibleCodec{}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return "ansible-inventory"
}

func (c *AnsibleCodec) ContentType() string {
	return "application/yaml"
}

// ungroupedNodes holds nodes that report no role
const ungroupedNodes = "k8s_nodes"

type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Vars     map[string]any             `yaml:"vars,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string         `yaml:"ansible_host,omitempty"`
	Vars        map[string]any `yaml:",inline"`
}

// bookkeeping attributes are not useful as host vars
var skipHostVars = map[string]bool{
	domain.AttrInstName:     true,
	domain.AttrName:         true,
	domain.AttrModelID:      true,
	domain.AttrOrganization: true,
	domain.AttrCollectTask:  true,
	domain.AttrAutoCollect:  true,
	domain.AttrCollectTime:  true,
	"ip_addr":               true,
	"role":                  true,
}

// Export writes the node inventory
func (c *AnsibleCodec) Export(s *Snapshot, w io.Writer) error {
	inv := ansibleInventory{
		All: ansibleGroup{
			Children: make(map[string]ansibleGroupDef),
		},
	}
	if s.Source != "" {
		inv.All.Vars = map[string]any{"k8s_cluster": s.Source}
	}

	for _, e := range s.Entities {
		if e.ModelID != domain.ModelNode {
			continue
		}
		name := e.Attributes.String(domain.AttrName)
		if name == "" {
			name = e.InstName()
		}

		host := ansibleHost{
			AnsibleHost: e.Attributes.String("ip_addr"),
			Vars:        make(map[string]any),
		}
		for _, key := range e.Attributes.Keys() {
			if !skipHostVars[key] {
				host.Vars[key] = e.Attributes[key]
			}
		}

		for _, group := range nodeGroups(e.Attributes.String("role")) {
			def := inv.All.Children[group]
			if def.Hosts == nil {
				def.Hosts = make(map[string]ansibleHost)
			}
			def.Hosts[name] = host
			inv.All.Children[group] = def
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}
	return nil
}

// nodeGroups maps a comma-joined role list to inventory group names
func nodeGroups(roles string) []string {
	var groups []string
	for _, role := range strings.Split(roles, ",") {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		groups = append(groups, "k8s_"+strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(role))
	}
	if len(groups) == 0 {
		return []string{ungroupedNodes}
	}
	return groups
}
