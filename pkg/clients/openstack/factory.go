// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package openstack

import (
	"context"
	"errors"
	"fmt"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	gophercloudconfig "github.com/gophercloud/gophercloud/v2/openstack/config"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/tokens"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/core/registry"
)

// ErrProjectNotFound is returned when the requested project is not visible to
// the authenticated token.
var ErrProjectNotFound = errors.New("project not found")

// DefaultFactory is the client factory used by the gateway at runtime.
var DefaultFactory *Factory

// SetFactory sets the client factory used by the gateway.
func SetFactory(f *Factory) {
	DefaultFactory = f
}

// Factory builds backend API client sets from request bearer tokens. Built
// client sets are cached per (token, project), so repeated calls within a
// token lifetime reuse the already authenticated clients.
type Factory struct {
	authEndpoint string
	region       string
	withNetwork  bool
	cache        *registry.Registry[string, *ServiceSet]
}

// NewFactory creates a new client factory authenticating against the given
// identity endpoint. When withNetwork is false the network client is not
// built and the flat network backend is expected to be used.
func NewFactory(authEndpoint, region string, withNetwork bool) *Factory {
	return &Factory{
		authEndpoint: authEndpoint,
		region:       region,
		withNetwork:  withNetwork,
		cache:        registry.New[string, *ServiceSet](),
	}
}

// FromToken builds (or returns an already cached) service set for the given
// bearer token, scoped to the given project.
func (f *Factory) FromToken(ctx context.Context, token, project string) (*ServiceSet, error) {
	cacheKey := project + "/" + token
	if set, ok := f.cache.Get(cacheKey); ok {
		return set, nil
	}

	authOpts := gophercloud.AuthOptions{
		IdentityEndpoint: f.authEndpoint,
		TokenID:          token,
		Scope: &gophercloud.AuthScope{
			ProjectName: project,
			DomainName:  "Default",
		},
	}

	provider, err := gophercloudconfig.NewProviderClient(ctx, authOpts)
	if err != nil {
		return nil, fmt.Errorf("unable to authenticate token: %w", err)
	}

	eo := gophercloud.EndpointOpts{Region: f.region}

	compute, err := openstack.NewComputeV2(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("unable to create compute client: %w", err)
	}

	blockStorage, err := openstack.NewBlockStorageV3(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("unable to create block-storage client: %w", err)
	}

	image, err := openstack.NewImageV2(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("unable to create image client: %w", err)
	}

	var network *gophercloud.ServiceClient
	if f.withNetwork {
		network, err = openstack.NewNetworkV2(provider, eo)
		if err != nil {
			return nil, fmt.Errorf("unable to create network client: %w", err)
		}
	}

	identity, err := openstack.NewIdentityV3(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("unable to create identity client: %w", err)
	}

	projectID, err := resolveProjectID(ctx, identity, project)
	if err != nil {
		return nil, err
	}

	user, err := tokens.Get(ctx, identity, token).ExtractUser()
	if err != nil {
		return nil, fmt.Errorf("unable to read token user: %w", err)
	}

	set := &ServiceSet{
		ClientScope: ClientScope{
			Project:   project,
			ProjectID: projectID,
			Region:    f.region,
			UserName:  user.Name,
		},
		Compute:      compute,
		BlockStorage: blockStorage,
		Image:        image,
		Network:      network,
	}

	f.cache.Overwrite(cacheKey, set)

	return set, nil
}

// Region returns the backend region served by the factory.
func (f *Factory) Region() string {
	return f.region
}

// resolveProjectID resolves the project name to its identifier using the
// projects visible to the authenticated token.
func resolveProjectID(ctx context.Context, identity *gophercloud.ServiceClient, project string) (string, error) {
	var projectID string
	err := projects.ListAvailable(identity).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			projectList, err := projects.ExtractProjects(page)
			if err != nil {
				return false, fmt.Errorf("could not extract project pages: %w", err)
			}

			for _, p := range projectList {
				if p.Name == project || p.ID == project {
					projectID = p.ID

					return false, nil
				}
			}

			return true, nil
		})
	if err != nil {
		return "", err
	}

	if projectID == "" {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}

	return projectID, nil
}
