// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package translators

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	blockquotasets "github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/quotasets"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/keypairs"
	computequotasets "github.com/gophercloud/gophercloud/v2/openstack/compute/v2/quotasets"
	networkquotas "github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/quotas"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/stackbridge/gce-gateway/pkg/core/config"
	"github.com/stackbridge/gce-gateway/pkg/gcerr"
	"github.com/stackbridge/gce-gateway/pkg/gateway/links"
	"github.com/stackbridge/gce-gateway/pkg/gateway/scope"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/utils/logctx"
)

// ProjectQuota is one quota metric of the project view.
type ProjectQuota struct {
	Metric string  `json:"metric"`
	Limit  float64 `json:"limit"`
	Usage  float64 `json:"usage"`
}

// Project is the GCE view of the backend project.
type Project struct {
	Kind                   string         `json:"kind"`
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	Description            string         `json:"description,omitempty"`
	CommonInstanceMetadata Metadata       `json:"commonInstanceMetadata"`
	Quotas                 []ProjectQuota `json:"quotas"`
	SelfLink               string         `json:"selfLink"`
}

// ProjectTranslator renders the backend project with its quotas and the
// project-wide ssh keys.
type ProjectTranslator struct {
	set *Set
}

// Kind returns the GCE kind tag of the project resource.
func (t *ProjectTranslator) Kind() string {
	return "compute#project"
}

// keypairList returns the backend keypairs of the caller.
func (t *ProjectTranslator) keypairList(ctx context.Context) ([]keypairs.KeyPair, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]keypairs.KeyPair, 0)
	err = keypairs.List(reqInfo.Services.Compute, nil).EachPage(ctx,
		func(_ context.Context, page pagination.Page) (bool, error) {
			keypairList, err := keypairs.ExtractKeyPairs(page)
			if err != nil {
				return false, err
			}

			items = append(items, keypairList...)

			return true, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list keypairs: %w", err)
	}

	return items, nil
}

// sshKeysBlob renders the backend keypairs as the sshKeys metadata value, one
// "name:key" entry per line.
func sshKeysBlob(items []keypairs.KeyPair) string {
	lines := make([]string, 0, len(items))
	for _, keypair := range items {
		lines = append(lines, keypair.Name+":"+strings.TrimSpace(keypair.PublicKey))
	}
	sort.Strings(lines)

	return strings.Join(lines, "\n")
}

// quotas aggregates the project quota metrics from the compute, block storage
// and network services. Metrics of an unreachable service are skipped, the
// project view degrades rather than fails.
func (t *ProjectTranslator) quotas(ctx context.Context) []ProjectQuota {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil
	}

	logger := logctx.GetLogger(ctx)
	items := make([]ProjectQuota, 0, 8)

	var compute *computequotasets.QuotaDetailSet
	computeDetail, err := computequotasets.GetDetail(ctx, reqInfo.Services.Compute, reqInfo.Services.ProjectID).Extract()
	if err != nil {
		logger.Warn("unable to read compute quotas", "reason", err)
	} else {
		compute = &computeDetail
		items = append(items,
			ProjectQuota{
				Metric: "CPUS",
				Limit:  float64(compute.Cores.Limit),
				Usage:  float64(compute.Cores.InUse),
			},
			ProjectQuota{
				Metric: "INSTANCES",
				Limit:  float64(compute.Instances.Limit),
				Usage:  float64(compute.Instances.InUse),
			},
		)
	}

	storage, err := blockquotasets.GetUsage(ctx, reqInfo.Services.BlockStorage, reqInfo.Services.ProjectID).Extract()
	if err != nil {
		logger.Warn("unable to read block storage quotas", "reason", err)
	} else {
		items = append(items,
			ProjectQuota{
				Metric: "DISKS_TOTAL_GB",
				Limit:  float64(storage.Gigabytes.Limit),
				Usage:  float64(storage.Gigabytes.InUse),
			},
			ProjectQuota{
				Metric: "SNAPSHOTS",
				Limit:  float64(storage.Snapshots.Limit),
				Usage:  float64(storage.Snapshots.InUse),
			},
		)
	}

	items = append(items, t.networkQuotas(ctx, compute != nil, compute)...)

	return items
}

// networkQuotas collects the firewall, address and network metrics, whose
// limits come from the network service in SDN mode and from the compute
// service otherwise.
func (t *ProjectTranslator) networkQuotas(ctx context.Context, haveCompute bool, compute *computequotasets.QuotaDetailSet) []ProjectQuota {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil
	}

	logger := logctx.GetLogger(ctx)

	addressUsage := 0.0
	if fips, err := t.set.backends.Address.ListFloatingIPs(ctx, reqInfo.Services); err == nil {
		addressUsage = float64(len(fips))
	}

	networkUsage := 0.0
	if nets, err := t.set.backends.Network.ListNetworks(ctx, reqInfo.Services); err == nil {
		networkUsage = float64(len(nets))
	}

	firewallUsage := 0.0
	if groups, err := t.set.Firewalls.groups(ctx); err == nil {
		firewallUsage = float64(len(groups))
	}

	if t.set.conf.NetworkAPI == config.NetworkAPINova {
		items := make([]ProjectQuota, 0, 3)
		if haveCompute {
			items = append(items,
				ProjectQuota{
					Metric: "STATIC_ADDRESSES",
					Limit:  float64(compute.FloatingIPs.Limit),
					Usage:  addressUsage,
				},
				ProjectQuota{
					Metric: "FIREWALLS",
					Limit:  float64(compute.SecurityGroups.Limit),
					Usage:  firewallUsage,
				},
			)
		}

		return append(items, ProjectQuota{
			Metric: "NETWORKS",
			Limit:  -1,
			Usage:  networkUsage,
		})
	}

	quota, err := networkquotas.Get(ctx, reqInfo.Services.Network, reqInfo.Services.ProjectID).Extract()
	if err != nil {
		logger.Warn("unable to read network quotas", "reason", err)

		return nil
	}

	return []ProjectQuota{
		{
			Metric: "STATIC_ADDRESSES",
			Limit:  float64(quota.FloatingIP),
			Usage:  addressUsage,
		},
		{
			Metric: "FIREWALLS",
			Limit:  float64(quota.SecurityGroup),
			Usage:  firewallUsage,
		},
		{
			Metric: "NETWORKS",
			Limit:  float64(quota.Network),
			Usage:  networkUsage,
		},
	}
}

// Get renders the project view.
func (t *ProjectTranslator) Get(ctx context.Context) (*Project, error) {
	reqInfo, err := info(ctx)
	if err != nil {
		return nil, err
	}

	builder := linkBuilder(reqInfo)
	selfLink := builder.Project()

	item := &Project{
		Kind:     t.Kind(),
		ID:       links.ID(selfLink),
		Name:     reqInfo.Project,
		Quotas:   t.quotas(ctx),
		SelfLink: selfLink,
		CommonInstanceMetadata: Metadata{
			Kind: "compute#metadata",
		},
	}

	keypairList, err := t.keypairList(ctx)
	if err != nil {
		return nil, err
	}
	if blob := sshKeysBlob(keypairList); blob != "" {
		item.CommonInstanceMetadata.Items = []MetadataItem{
			{Key: "sshKeys", Value: blob},
		}
	}

	return item, nil
}

// SetCommonInstanceMetadata reconciles the backend keypairs against the
// sshKeys metadata entry. A keypair named after an entry but carrying a
// different key is recreated; entries without a keypair are registered.
// Keypairs not named in the entry are left alone.
func (t *ProjectTranslator) SetCommonInstanceMetadata(ctx context.Context, body json.RawMessage) error {
	var req struct {
		Items []MetadataItem `json:"items"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return gcerr.InvalidInput("unable to parse metadata body: %s", err)
	}

	if _, err := t.set.ops.Init(ctx, operations.TypeSetMetadata, "project", "", "", scope.Global()); err != nil {
		return err
	}

	blob := ""
	for _, item := range req.Items {
		if item.Key == "sshKeys" {
			blob = item.Value
		}
	}

	desired := make(map[string]string)
	for _, line := range strings.Split(blob, "\n") {
		name, publicKey, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || name == "" || publicKey == "" {
			continue
		}
		desired[name] = publicKey
	}

	keypairList, err := t.keypairList(ctx)
	if err != nil {
		return err
	}

	existing := make(map[string]string, len(keypairList))
	for _, keypair := range keypairList {
		existing[keypair.Name] = strings.TrimSpace(keypair.PublicKey)
	}

	reqInfo, err := info(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		publicKey := desired[name]
		current, ok := existing[name]
		if ok && current == publicKey {
			continue
		}

		if ok {
			err := keypairs.Delete(ctx, reqInfo.Services.Compute, name, nil).ExtractErr()
			if err != nil {
				return gcerr.Internal(err)
			}
		}

		opts := keypairs.CreateOpts{
			Name:      name,
			PublicKey: publicKey,
		}
		if _, err := keypairs.Create(ctx, reqInfo.Services.Compute, opts).Extract(); err != nil {
			return gcerr.Internal(err)
		}
	}

	return nil
}
