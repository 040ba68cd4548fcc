package domain

// NetworkSpec describes the bridge network shared by the managed services.
type NetworkSpec struct {
	Name    string
	Subnet  string
	Gateway string
}

// Mount is a host bind mount.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// PortBinding publishes a container port on the host.
type PortBinding struct {
	HostIP        string
	HostPort      string
	ContainerPort string
	Protocol      string // "tcp" or "udp"
}

// ServiceSpec describes one managed container (proxy or DNS).
type ServiceSpec struct {
	Name    string
	Image   string
	IPv4    string
	Ports   []PortBinding
	Mounts  []Mount
	CapAdd  []string
	Cmd     []string
	Network string
}

// RenderedConfig holds the generated proxy and resolver configuration text.
type RenderedConfig struct {
	Proxy    []byte
	Resolver []byte
}
