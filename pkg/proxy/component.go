package proxy

// Component is a definition proxy or an instance proxy. The set of variants
// is closed: only *InstanceDefinitionProxy and *InstanceProxy implement it,
// and consumers switch on the concrete type.
type Component interface {
	ID() string
	Depth() int
	component() // marker method restricting implementations to this package
}

func (d *InstanceDefinitionProxy) ID() string { return d.ApplicationID }
func (d *InstanceDefinitionProxy) Depth() int  { return d.MaxDepth }
func (*InstanceDefinitionProxy) component()    {}

func (p *InstanceProxy) ID() string { return p.ApplicationID }
func (p *InstanceProxy) Depth() int  { return p.MaxDepth }
func (*InstanceProxy) component()    {}

// Kind names the variant of c, for logs and outcomes.
func Kind(c Component) string {
	switch c.(type) {
	case *InstanceDefinitionProxy:
		return "definition"
	case *InstanceProxy:
		return "instance"
	default:
		return "unknown"
	}
}

// Bakeable pairs a component with the layer/collection path its host
// objects are created under.
type Bakeable struct {
	Path      []string
	Component Component
}
