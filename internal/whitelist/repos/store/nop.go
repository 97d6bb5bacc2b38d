package store

import (
	"context"

	"github.com/minehattan/whitelister/internal/whitelist/domain"
)

// nop is a Store for deployments that run with whitelist enforcement
// disabled: every check passes and mutations are swallowed.
type nop struct{}

// NewNop returns a Store that admits everyone and persists nothing.
func NewNop() Store { return nop{} }

func (nop) Add(context.Context, domain.Entry) error            { return nil }
func (nop) Remove(context.Context, domain.Entry) error         { return nil }
func (nop) Rename(context.Context, domain.Entry, string) error { return nil }
func (nop) Snapshot(context.Context) ([]domain.Entry, error)   { return nil, nil }
func (nop) Close() error                                       { return nil }

func (nop) ResolveIdentifier(context.Context, string) (domain.Identifier, bool, error) {
	return domain.NilIdentifier, false, nil
}

func (nop) Check(_ context.Context, e domain.Entry) domain.CheckResult {
	return domain.CheckResult{OnWhitelist: true, WhitelistedName: e.Name}
}
