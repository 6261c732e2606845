// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/stackbridge/gce-gateway/pkg/gcerr"
)

// Store provides access to the sidecar rows.
type Store struct {
	db *bun.DB
}

// NewStore creates a new sidecar store on top of the given database.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Add inserts a new sidecar row. Inserting a row whose (project, kind, name)
// already exists fails with an invalid-input error, which is how concurrent
// creates of the same resource are serialized.
func (s *Store) Add(ctx context.Context, item *Item) error {
	_, err := s.db.NewInsert().
		Model(item).
		Exec(ctx)

	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return gcerr.InvalidInput("resource already exists")
		}

		return fmt.Errorf("unable to insert sidecar row: %w", err)
	}

	return nil
}

// Update replaces the name and payload of an existing sidecar row.
func (s *Store) Update(ctx context.Context, item *Item) error {
	_, err := s.db.NewUpdate().
		Model(item).
		Column("name", "payload").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unable to update sidecar row: %w", err)
	}

	return nil
}

// Delete removes the sidecar row with the given kind and backend identifier.
// Deleting an absent row is not an error.
func (s *Store) Delete(ctx context.Context, kind, itemID string) error {
	_, err := s.db.NewDelete().
		Model((*Item)(nil)).
		Where("kind = ? AND item_id = ?", kind, itemID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unable to delete sidecar row: %w", err)
	}

	return nil
}

// GetByID returns the sidecar row with the given kind and backend identifier,
// or nil when no such row exists.
func (s *Store) GetByID(ctx context.Context, kind, itemID string) (*Item, error) {
	var item Item
	err := s.db.NewSelect().
		Model(&item).
		Where("kind = ? AND item_id = ?", kind, itemID).
		Scan(ctx)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("unable to select sidecar row: %w", err)
	}

	return &item, nil
}

// GetByName returns the sidecar row with the given project, kind and name, or
// nil when no such row exists.
func (s *Store) GetByName(ctx context.Context, projectID, kind, name string) (*Item, error) {
	var item Item
	err := s.db.NewSelect().
		Model(&item).
		Where("project_id = ? AND kind = ? AND name = ?", projectID, kind, name).
		Scan(ctx)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("unable to select sidecar row: %w", err)
	}

	return &item, nil
}

// List returns all sidecar rows of the given kind within a project.
func (s *Store) List(ctx context.Context, projectID, kind string) ([]Item, error) {
	items := make([]Item, 0)
	err := s.db.NewSelect().
		Model(&items).
		Where("project_id = ? AND kind = ?", projectID, kind).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list sidecar rows: %w", err)
	}

	return items, nil
}

// PurgeAbsent removes the sidecar rows of the given kind whose backend
// identifier is not present in the backend snapshot observed by the caller.
func (s *Store) PurgeAbsent(ctx context.Context, projectID, kind string, present map[string]struct{}) error {
	items, err := s.List(ctx, projectID, kind)
	if err != nil {
		return err
	}

	for _, item := range items {
		if _, ok := present[item.ItemID]; ok {
			continue
		}

		if err := s.Delete(ctx, kind, item.ItemID); err != nil {
			return err
		}
	}

	return nil
}
