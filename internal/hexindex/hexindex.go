// Package hexindex wraps the H3 hierarchical hexagonal grid: conversion between
// 64-bit cells and their 15-character hex strings, parent lookup, and cell
// geometry as orb polygons.
package hexindex

import (
	"fmt"
	"strconv"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"
)

// ToString renders an encoded cell as lowercase hex.
func ToString(cell uint64) (string, error) {
	c := h3.Cell(cell)
	if !c.IsValid() {
		return "", fmt.Errorf("format cell %x: %w", cell, domain.ErrInvalidCell)
	}
	return c.String(), nil
}

// ToEncoded parses a hex cell id.
func ToEncoded(cell string) (uint64, error) {
	c, err := parse(cell)
	if err != nil {
		return 0, err
	}
	return uint64(c), nil
}

// Resolution returns the resolution of a hex cell id.
func Resolution(cell string) (int, error) {
	c, err := parse(cell)
	if err != nil {
		return 0, err
	}
	return c.Resolution(), nil
}

// Ancestor returns the cell at res that contains cell. res must be strictly
// coarser than the cell's own resolution.
func Ancestor(cell string, res int) (string, error) {
	c, err := parse(cell)
	if err != nil {
		return "", err
	}
	if res < 0 || res >= c.Resolution() {
		return "", fmt.Errorf("ancestor of %s at resolution %d: %w", cell, res, domain.ErrInvalidCell)
	}
	parent, err := c.Parent(res)
	if err != nil {
		return "", fmt.Errorf("ancestor of %s at resolution %d: %w: %w", cell, res, domain.ErrInvalidCell, err)
	}
	return parent.String(), nil
}

// AddAncestors fills the coarser cell columns of each record from its finest
// cell. Parents are looked up once per distinct cell.
func AddAncestors(records []domain.AvailabilityRecord, resolutions ...int) error {
	for _, res := range resolutions {
		if res >= domain.FinestResolution {
			return fmt.Errorf("add ancestors at resolution %d: %w", res, domain.ErrInvalidCell)
		}
		memo := make(map[string]string)
		for i := range records {
			cell := records[i].CellRes8
			parent, ok := memo[cell]
			if !ok {
				var err error
				parent, err = Ancestor(cell, res)
				if err != nil {
					return fmt.Errorf("add ancestors row %d: %w", i, err)
				}
				memo[cell] = parent
			}
			records[i].SetCell(res, parent)
		}
	}
	return nil
}

// FromLatLng returns the id of the cell at res containing the point.
func FromLatLng(lat, lng float64, res int) (string, error) {
	c, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), res)
	if err != nil {
		return "", fmt.Errorf("locate %f,%f at resolution %d: %w: %w", lat, lng, res, domain.ErrInvalidCell, err)
	}
	return c.String(), nil
}

// Boundary returns the cell outline as a closed lon/lat ring.
func Boundary(cell string) (orb.Polygon, error) {
	c, err := parse(cell)
	if err != nil {
		return nil, err
	}
	b, err := c.Boundary()
	if err != nil {
		return nil, fmt.Errorf("boundary of %s: %w: %w", cell, domain.ErrInvalidCell, err)
	}
	ring := make(orb.Ring, 0, len(b)+1)
	for _, ll := range b {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}

// Children returns the descendants of cell at res.
func Children(cell string, res int) ([]string, error) {
	c, err := parse(cell)
	if err != nil {
		return nil, err
	}
	if res < c.Resolution() {
		return nil, fmt.Errorf("children of %s at resolution %d: %w", cell, res, domain.ErrInvalidCell)
	}
	kids, err := c.Children(res)
	if err != nil {
		return nil, fmt.Errorf("children of %s at resolution %d: %w: %w", cell, res, domain.ErrInvalidCell, err)
	}
	out := make([]string, len(kids))
	for i, k := range kids {
		out[i] = k.String()
	}
	return out, nil
}

func parse(cell string) (h3.Cell, error) {
	v, err := strconv.ParseUint(cell, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cell %q: %w", cell, domain.ErrInvalidCell)
	}
	c := h3.Cell(v)
	if !c.IsValid() {
		return 0, fmt.Errorf("parse cell %q: %w", cell, domain.ErrInvalidCell)
	}
	return c, nil
}
