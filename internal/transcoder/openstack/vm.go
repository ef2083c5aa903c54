package openstack

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/keypairs"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/rules"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	flavorutils "github.com/gophercloud/utils/v2/openstack/compute/v2/flavors"
	imageutils "github.com/gophercloud/utils/v2/openstack/image/v2/images"
	networkutils "github.com/gophercloud/utils/v2/openstack/networking/v2/networks"

	"github.com/dacirco/dacirco/internal/log"
)

const (
	// ICMPSecurityGroup allows pinging the worker VMs.
	ICMPSecurityGroup = "enable_ICMP"
	// SSHSecurityGroup allows SSH access to the worker VMs.
	SSHSecurityGroup = "enable_SSH"
)

//go:generate mockery --case underscore --output openstackmock --outpkg openstackmock --name VMManager

// VMSpec describes the worker VM to boot.
type VMSpec struct {
	Name              string
	ImageName         string
	FlavorName        string
	NetworkName       string
	FloatingIPNetwork string
	SecurityGroups    []string
	KeypairName       string
}

// VM is a booted worker VM.
type VM struct {
	ID           string
	Name         string
	IP           string
	FloatingIPID string
}

// VMManager knows how to drive worker VMs on an OpenStack cloud.
type VMManager interface {
	// EnsureSecurityGroups makes sure the ICMP and SSH security groups
	// exist with their ingress rules.
	EnsureSecurityGroups(ctx context.Context) error
	// EnsureKeypair makes sure a keypair exists and returns its private
	// key. The key is regenerated (and persisted to keyFile) when the
	// cloud does not know the keypair yet.
	EnsureKeypair(ctx context.Context, name, keyFile string) ([]byte, error)
	// CreateVM boots a VM, waits until it is active and returns it with
	// the IP jobs should be reached at.
	CreateVM(ctx context.Context, spec VMSpec) (*VM, error)
	DeleteVM(ctx context.Context, vm *VM) error

	SuspendVM(ctx context.Context, id string) error
	ResumeVM(ctx context.Context, id string) error
	StopVM(ctx context.Context, id string) error
	StartVM(ctx context.Context, id string) error
	RebootVM(ctx context.Context, id string) error
}

type vmManager struct {
	compute *gophercloud.ServiceClient
	network *gophercloud.ServiceClient
	image   *gophercloud.ServiceClient

	activeTimeout time.Duration
	logger        log.Logger
}

// NewVMManager returns a VMManager working against a real cloud through the
// received clients.
func NewVMManager(clients *Clients, activeTimeout time.Duration, logger log.Logger) VMManager {
	if activeTimeout == 0 {
		activeTimeout = 5 * time.Minute
	}

	return vmManager{
		compute:       clients.Compute,
		network:       clients.Network,
		image:         clients.Image,
		activeTimeout: activeTimeout,
		logger:        logger.WithValues(log.Kv{"service": "openstack.VMManager"}),
	}
}

func (v vmManager) EnsureSecurityGroups(ctx context.Context) error {
	err := v.ensureSecurityGroup(ctx, ICMPSecurityGroup, func(groupID string) rules.CreateOpts {
		return rules.CreateOpts{
			Direction:      rules.DirIngress,
			EtherType:      rules.EtherType4,
			SecGroupID:     groupID,
			Protocol:       rules.ProtocolICMP,
			RemoteIPPrefix: "0.0.0.0/0",
		}
	})
	if err != nil {
		return err
	}

	return v.ensureSecurityGroup(ctx, SSHSecurityGroup, func(groupID string) rules.CreateOpts {
		return rules.CreateOpts{
			Direction:      rules.DirIngress,
			EtherType:      rules.EtherType4,
			SecGroupID:     groupID,
			Protocol:       rules.ProtocolTCP,
			PortRangeMin:   22,
			PortRangeMax:   22,
			RemoteIPPrefix: "0.0.0.0/0",
		}
	})
}

func (v vmManager) ensureSecurityGroup(ctx context.Context, name string, rule func(groupID string) rules.CreateOpts) error {
	pages, err := groups.List(v.network, groups.ListOpts{Name: name}).AllPages(ctx)
	if err != nil {
		return fmt.Errorf("could not list security groups: %w", err)
	}

	existing, err := groups.ExtractGroups(pages)
	if err != nil {
		return fmt.Errorf("could not extract security groups: %w", err)
	}

	if len(existing) > 0 {
		return nil
	}

	v.logger.WithCtxValues(ctx).Infof("Creating security group %q", name)
	group, err := groups.Create(ctx, v.network, groups.CreateOpts{Name: name}).Extract()
	if err != nil {
		return fmt.Errorf("could not create security group %q: %w", name, err)
	}

	_, err = rules.Create(ctx, v.network, rule(group.ID)).Extract()
	if err != nil {
		return fmt.Errorf("could not create rule for security group %q: %w", name, err)
	}

	return nil
}

func (v vmManager) EnsureKeypair(ctx context.Context, name, keyFile string) ([]byte, error) {
	_, err := keypairs.Get(ctx, v.compute, name, keypairs.GetOpts{}).Extract()
	if err == nil {
		key, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("keypair %q exists but its private key could not be read from %q: %w", name, keyFile, err)
		}

		return key, nil
	}

	v.logger.WithCtxValues(ctx).Infof("Creating keypair %q", name)
	kp, err := keypairs.Create(ctx, v.compute, keypairs.CreateOpts{Name: name}).Extract()
	if err != nil {
		return nil, fmt.Errorf("could not create keypair %q: %w", name, err)
	}

	err = os.WriteFile(keyFile, []byte(kp.PrivateKey), 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not persist private key to %q: %w", keyFile, err)
	}

	return []byte(kp.PrivateKey), nil
}

func (v vmManager) CreateVM(ctx context.Context, spec VMSpec) (_ *VM, err error) {
	logger := v.logger.WithCtxValues(ctx).WithValues(log.Kv{"vm": spec.Name})

	imageID, err := imageutils.IDFromName(ctx, v.image, spec.ImageName)
	if err != nil {
		return nil, fmt.Errorf("could not resolve image %q: %w", spec.ImageName, err)
	}

	flavorID, err := flavorutils.IDFromName(ctx, v.compute, spec.FlavorName)
	if err != nil {
		return nil, fmt.Errorf("could not resolve flavor %q: %w", spec.FlavorName, err)
	}

	networkID, err := networkutils.IDFromName(ctx, v.network, spec.NetworkName)
	if err != nil {
		return nil, fmt.Errorf("could not resolve network %q: %w", spec.NetworkName, err)
	}

	createOpts := servers.CreateOpts{
		Name:           spec.Name,
		ImageRef:       imageID,
		FlavorRef:      flavorID,
		Networks:       []servers.Network{{UUID: networkID}},
		SecurityGroups: spec.SecurityGroups,
	}

	var opts servers.CreateOptsBuilder = createOpts
	if spec.KeypairName != "" {
		opts = keypairs.CreateOptsExt{CreateOptsBuilder: createOpts, KeyName: spec.KeypairName}
	}

	logger.Infof("Booting VM")
	server, err := servers.Create(ctx, v.compute, opts, nil).Extract()
	if err != nil {
		return nil, fmt.Errorf("could not create VM %q: %w", spec.Name, err)
	}

	// The server exists from here on, a failure before returning it would
	// leak it since only returned VMs reach DeleteVM.
	defer func() {
		if err == nil {
			return
		}
		delErr := servers.Delete(context.WithoutCancel(ctx), v.compute, server.ID).ExtractErr()
		if delErr != nil {
			logger.Errorf("Could not delete half-booted VM: %s", delErr)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, v.activeTimeout)
	defer cancel()
	err = servers.WaitForStatus(waitCtx, v.compute, server.ID, "ACTIVE")
	if err != nil {
		return nil, fmt.Errorf("VM %q did not become active: %w", spec.Name, err)
	}

	vm := &VM{ID: server.ID, Name: spec.Name}

	port, err := v.serverPort(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	if len(port.FixedIPs) == 0 {
		return nil, fmt.Errorf("VM %q has no fixed IP", spec.Name)
	}
	vm.IP = port.FixedIPs[0].IPAddress

	if spec.FloatingIPNetwork != "" {
		fip, err := v.attachFloatingIP(ctx, spec.FloatingIPNetwork, port.ID)
		if err != nil {
			return nil, err
		}
		vm.IP = fip.FloatingIP
		vm.FloatingIPID = fip.ID
		logger.Infof("VM reachable at floating IP %s", vm.IP)
	}

	return vm, nil
}

func (v vmManager) serverPort(ctx context.Context, serverID string) (*ports.Port, error) {
	pages, err := ports.List(v.network, ports.ListOpts{DeviceID: serverID}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list VM ports: %w", err)
	}

	got, err := ports.ExtractPorts(pages)
	if err != nil {
		return nil, fmt.Errorf("could not extract VM ports: %w", err)
	}
	if len(got) == 0 {
		return nil, fmt.Errorf("VM %q has no network port", serverID)
	}

	return &got[0], nil
}

func (v vmManager) attachFloatingIP(ctx context.Context, networkName, portID string) (*floatingips.FloatingIP, error) {
	networkID, err := networkutils.IDFromName(ctx, v.network, networkName)
	if err != nil {
		return nil, fmt.Errorf("could not resolve floating IP network %q: %w", networkName, err)
	}

	fip, err := floatingips.Create(ctx, v.network, floatingips.CreateOpts{
		FloatingNetworkID: networkID,
		PortID:            portID,
	}).Extract()
	if err != nil {
		return nil, fmt.Errorf("could not create floating IP: %w", err)
	}

	return fip, nil
}

func (v vmManager) DeleteVM(ctx context.Context, vm *VM) error {
	v.logger.WithCtxValues(ctx).WithValues(log.Kv{"vm": vm.Name}).Infof("Deleting VM")

	if vm.FloatingIPID != "" {
		err := floatingips.Delete(ctx, v.network, vm.FloatingIPID).ExtractErr()
		if err != nil {
			return fmt.Errorf("could not delete floating IP of VM %q: %w", vm.Name, err)
		}
	}

	err := servers.Delete(ctx, v.compute, vm.ID).ExtractErr()
	if err != nil {
		return fmt.Errorf("could not delete VM %q: %w", vm.Name, err)
	}

	return nil
}

func (v vmManager) SuspendVM(ctx context.Context, id string) error {
	err := servers.Suspend(ctx, v.compute, id).ExtractErr()
	if err != nil {
		return fmt.Errorf("could not suspend VM %q: %w", id, err)
	}

	return nil
}

func (v vmManager) ResumeVM(ctx context.Context, id string) error {
	err := servers.Resume(ctx, v.compute, id).ExtractErr()
	if err != nil {
		return fmt.Errorf("could not resume VM %q: %w", id, err)
	}

	return nil
}

func (v vmManager) StopVM(ctx context.Context, id string) error {
	err := servers.Stop(ctx, v.compute, id).ExtractErr()
	if err != nil {
		return fmt.Errorf("could not stop VM %q: %w", id, err)
	}

	return nil
}

func (v vmManager) StartVM(ctx context.Context, id string) error {
	err := servers.Start(ctx, v.compute, id).ExtractErr()
	if err != nil {
		return fmt.Errorf("could not start VM %q: %w", id, err)
	}

	return nil
}

func (v vmManager) RebootVM(ctx context.Context, id string) error {
	err := servers.Reboot(ctx, v.compute, id, servers.RebootOpts{Type: servers.SoftReboot}).ExtractErr()
	if err != nil {
		return fmt.Errorf("could not reboot VM %q: %w", id, err)
	}

	return nil
}
