package main

import (
	"context"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// readiness is ready when every check is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
