/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"
	"strings"
)

// ActorKind identifies who performed an operation.
type ActorKind string

const (
	ActorAdmin    ActorKind = "admin"
	ActorMerchant ActorKind = "merchant"
)

// ErrInvalidActor is returned for actors with an unknown kind or empty id.
var ErrInvalidActor = errors.New("invalid actor")

// Actor is the principal behind a holiday or schedule change.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

// ParseActor parses "kind:id", e.g. "admin:ops-7".
func ParseActor(s string) (Actor, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Actor{}, fmt.Errorf("%w: %q", ErrInvalidActor, s)
	}
	actor := Actor{Kind: ActorKind(strings.ToLower(kind)), ID: id}
	if err := actor.Validate(); err != nil {
		return Actor{}, err
	}
	return actor, nil
}

// Validate checks the kind and id.
func (a Actor) Validate() error {
	if a.Kind != ActorAdmin && a.Kind != ActorMerchant {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidActor, a.Kind)
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidActor)
	}
	return nil
}

// IsZero reports whether no actor is set.
func (a Actor) IsZero() bool {
	return a.Kind == "" && a.ID == ""
}

func (a Actor) String() string {
	if a.IsZero() {
		return "system"
	}
	return string(a.Kind) + ":" + a.ID
}

// CanClear reports whether a may lift the given override. Only an admin
// may lift an admin-placed holiday.
func (a Actor) CanClear(h *HolidayOverride) bool {
	if h == nil || h.CreatedByKind != ActorAdmin {
		return true
	}
	return a.Kind == ActorAdmin
}
