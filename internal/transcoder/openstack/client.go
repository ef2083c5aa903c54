// Package openstack implements the transcoding runner that executes each job
// on a dedicated OpenStack worker VM, plus the Swift object store gateway the
// transcoder results are checked against.
package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/utils/v2/openstack/clientconfig"
)

// Clients groups the OpenStack service clients the runner needs.
type Clients struct {
	Compute     *gophercloud.ServiceClient
	Network     *gophercloud.ServiceClient
	Image       *gophercloud.ServiceClient
	ObjectStore *gophercloud.ServiceClient
}

// NewClients authenticates against the cloud declared in clouds.yaml (or the
// OS_* environment) and returns the service clients.
func NewClients(ctx context.Context, cloud string) (*Clients, error) {
	opts := &clientconfig.ClientOpts{Cloud: cloud}

	compute, err := clientconfig.NewServiceClient(ctx, "compute", opts)
	if err != nil {
		return nil, fmt.Errorf("could not create compute client: %w", err)
	}

	network, err := clientconfig.NewServiceClient(ctx, "network", opts)
	if err != nil {
		return nil, fmt.Errorf("could not create network client: %w", err)
	}

	image, err := clientconfig.NewServiceClient(ctx, "image", opts)
	if err != nil {
		return nil, fmt.Errorf("could not create image client: %w", err)
	}

	objectStore, err := clientconfig.NewServiceClient(ctx, "object-store", opts)
	if err != nil {
		return nil, fmt.Errorf("could not create object store client: %w", err)
	}

	return &Clients{
		Compute:     compute,
		Network:     network,
		Image:       image,
		ObjectStore: objectStore,
	}, nil
}
