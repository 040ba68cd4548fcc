// Package docker implements the service runtime adapter using Docker API.
package docker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Labels put on every managed object.
const (
	labelManaged  = "localroute.managed"
	labelSpecHash = "localroute.spec"
)

// stopTimeout is the grace period, in seconds, before a container is killed.
const stopTimeout = 10

// Runtime implements the ServiceRuntime interface using Docker API.
type Runtime struct {
	client *client.Client
}

// NewRuntime creates a new Docker runtime instance.
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &Runtime{
		client: cli,
	}, nil
}

// NewRuntimeWithClient creates a new Docker runtime instance with a custom client (for testing).
func NewRuntimeWithClient(cli *client.Client) *Runtime {
	return &Runtime{
		client: cli,
	}
}

// Close releases the underlying client.
func (r *Runtime) Close() error {
	return r.client.Close()
}

// EnsureNetwork creates the bridge network with its subnet when it does not exist.
func (r *Runtime) EnsureNetwork(ctx context.Context, spec domain.NetworkSpec) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "docker",
		logging.FieldAction:  "EnsureNetwork",
		"network":            spec.Name,
	})
	log := logging.FromCtx(ctx)

	_, err := r.client.NetworkInspect(ctx, spec.Name, network.InspectOptions{})
	if err == nil {
		log.Debug().Msg("network exists")
		return nil
	}
	if !cerrdefs.IsNotFound(err) {
		return logging.WrapErr(log, err, "failed to inspect network")
	}

	createOptions := network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{labelManaged: "true"},
	}
	if spec.Subnet != "" {
		createOptions.IPAM = &network.IPAM{
			Driver: "default",
			Config: []network.IPAMConfig{{Subnet: spec.Subnet, Gateway: spec.Gateway}},
		}
	}

	if _, err := r.client.NetworkCreate(ctx, spec.Name, createOptions); err != nil {
		return logging.WrapErr(log, err, "failed to create network")
	}

	log.Info().Str("subnet", spec.Subnet).Msg("network created")
	return nil
}

// RemoveNetwork removes a Docker network.
func (r *Runtime) RemoveNetwork(ctx context.Context, name string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "docker",
		logging.FieldAction:  "RemoveNetwork",
		"network":            name,
	})
	log := logging.FromCtx(ctx)

	err := r.client.NetworkRemove(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			log.Debug().Msg("network not found, already removed")
			return nil
		}
		return logging.WrapErr(log, err, "failed to remove network")
	}

	log.Info().Msg("network removed")
	return nil
}

// StartService starts the container for spec, creating it when missing and
// recreating it when its spec changed.
func (r *Runtime) StartService(ctx context.Context, spec domain.ServiceSpec) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "docker",
		logging.FieldAction:  "StartService",
		logging.FieldService: spec.Name,
		"image":              spec.Image,
	})
	log := logging.FromCtx(ctx)

	hash := specHash(spec)

	inspect, err := r.client.ContainerInspect(ctx, spec.Name)
	switch {
	case err == nil:
		if inspect.Config != nil && inspect.Config.Labels[labelSpecHash] == hash {
			if inspect.State != nil && inspect.State.Running {
				log.Debug().Msg("service already running")
				return nil
			}
			break
		}
		log.Info().Msg("service spec changed, recreating container")
		if err := r.StopService(ctx, spec.Name); err != nil {
			return err
		}
		if err := r.RemoveService(ctx, spec.Name); err != nil {
			return err
		}
		if err := r.create(ctx, spec, hash); err != nil {
			return err
		}
	case cerrdefs.IsNotFound(err):
		if err := r.create(ctx, spec, hash); err != nil {
			return err
		}
	default:
		return logging.WrapErr(log, err, "failed to inspect container")
	}

	if err := r.client.ContainerStart(ctx, spec.Name, container.StartOptions{}); err != nil {
		return logging.WrapErr(log, err, "failed to start container")
	}

	log.Info().Msg("container started")
	return nil
}

// create creates the container, pulling the image once if it is missing.
func (r *Runtime) create(ctx context.Context, spec domain.ServiceSpec, hash string) error {
	log := logging.FromCtx(ctx)

	containerConfig, hostConfig, networkConfig, err := buildConfigs(spec, hash)
	if err != nil {
		return logging.WrapErr(log, err, "invalid service spec")
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, networkConfig, nil, spec.Name)
	if err != nil && cerrdefs.IsNotFound(err) {
		if pullErr := r.pull(ctx, spec.Image); pullErr != nil {
			return pullErr
		}
		resp, err = r.client.ContainerCreate(ctx, containerConfig, hostConfig, networkConfig, nil, spec.Name)
	}
	if err != nil {
		return logging.WrapErr(log, err, "failed to create container")
	}

	for _, w := range resp.Warnings {
		log.Warn().Str("warning", w).Msg("container created with warning")
	}
	log.Info().Str("container_id", resp.ID).Msg("container created")
	return nil
}

func (r *Runtime) pull(ctx context.Context, imageRef string) error {
	log := logging.FromCtx(ctx)
	log.Info().Msg("pulling image")

	reader, err := r.client.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return logging.WrapErr(log, err, "failed to pull image")
	}
	defer reader.Close()

	// Read the response to completion (this is required for the pull to complete)
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return logging.WrapErr(log, err, "failed to read pull response")
	}

	log.Info().Msg("image pulled successfully")
	return nil
}

// StopService stops a container. A missing or stopped container is a no-op.
func (r *Runtime) StopService(ctx context.Context, name string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "docker",
		logging.FieldAction:  "StopService",
		logging.FieldService: name,
	})
	log := logging.FromCtx(ctx)

	timeout := stopTimeout
	err := r.client.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			log.Debug().Msg("container not found, nothing to stop")
			return nil
		}
		return logging.WrapErr(log, err, "failed to stop container")
	}

	log.Debug().Msg("container stopped")
	return nil
}

// RemoveService removes a container. A missing container is a no-op.
func (r *Runtime) RemoveService(ctx context.Context, name string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "docker",
		logging.FieldAction:  "RemoveService",
		logging.FieldService: name,
	})
	log := logging.FromCtx(ctx)

	err := r.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			log.Debug().Msg("container not found, already removed")
			return nil
		}
		return logging.WrapErr(log, err, "failed to remove container")
	}

	log.Info().Msg("container removed")
	return nil
}

// IsServiceRunning reports whether the named container is running.
func (r *Runtime) IsServiceRunning(ctx context.Context, name string) (bool, error) {
	inspect, err := r.client.ContainerInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}

func buildConfigs(spec domain.ServiceSpec, hash string) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	exposedPorts := make(nat.PortSet)
	portBindings := make(nat.PortMap)

	for _, p := range spec.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, p.ContainerPort)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid port %s/%s: %w", p.ContainerPort, proto, err)
		}
		exposedPorts[port] = struct{}{}
		portBindings[port] = append(portBindings[port], nat.PortBinding{
			HostIP:   p.HostIP,
			HostPort: p.HostPort,
		})
	}

	binds := make([]string, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		bind := fmt.Sprintf("%s:%s", m.Source, m.Target)
		if m.ReadOnly {
			bind += ":ro"
		}
		binds = append(binds, bind)
	}

	containerConfig := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		ExposedPorts: exposedPorts,
		Labels: map[string]string{
			labelManaged:  "true",
			labelSpecHash: hash,
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings:  portBindings,
		Binds:         binds,
		CapAdd:        spec.CapAdd,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	var networkConfig *network.NetworkingConfig
	if spec.Network != "" {
		hostConfig.NetworkMode = container.NetworkMode(spec.Network)
		endpoint := &network.EndpointSettings{}
		if spec.IPv4 != "" {
			endpoint.IPAMConfig = &network.EndpointIPAMConfig{IPv4Address: spec.IPv4}
		}
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{spec.Network: endpoint},
		}
	}

	return containerConfig, hostConfig, networkConfig, nil
}

// specHash fingerprints a spec so a changed spec forces a recreate.
func specHash(spec domain.ServiceSpec) string {
	data, _ := json.Marshal(spec)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
