// Package identity resolves caller phone numbers to permission levels and
// display identities.
package identity

import (
	"fmt"
	"strings"
)

// Permission is the access level granted to a caller.
type Permission string

const (
	// Full is granted only to the operator's configured numbers.
	Full Permission = "full"
	// Limited is granted to every other caller.
	Limited Permission = "limited"
)

// Directory answers read-only contact-name lookups.
type Directory interface {
	// NameByNumber returns the contact name for a phone number, or false
	// if no contact matches.
	NameByNumber(phoneNumber string) (string, bool)
}

// Resolver maps phone numbers to (permission, display identity). It is
// immutable after construction and safe for concurrent use.
type Resolver struct {
	operatorName string
	trusted      map[string]bool
	dir          Directory
}

// ResolverOpts holds parameters for creating a Resolver.
type ResolverOpts struct {
	OperatorName   string   // display name for trusted callers; defaults to "Operator"
	TrustedNumbers []string // numbers granted Full permission
	Directory      Directory
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOpts) (*Resolver, error) {
	if len(opts.TrustedNumbers) == 0 {
		return nil, fmt.Errorf("identity: at least one trusted number is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("identity: directory is required")
	}
	name := opts.OperatorName
	if name == "" {
		name = "Operator"
	}
	trusted := make(map[string]bool, len(opts.TrustedNumbers))
	for _, n := range opts.TrustedNumbers {
		trusted[Normalize(n)] = true
	}
	return &Resolver{
		operatorName: name,
		trusted:      trusted,
		dir:          opts.Directory,
	}, nil
}

// Resolve returns the permission level and display identity for a caller.
// Trusted numbers resolve to Full and the operator's name; everything else
// resolves to Limited with the contact name if known, else the raw number.
func (r *Resolver) Resolve(phoneNumber string) (Permission, string) {
	normalized := Normalize(phoneNumber)
	if r.trusted[normalized] {
		return Full, r.operatorName
	}
	if name, ok := r.dir.NameByNumber(normalized); ok {
		return Limited, name
	}
	return Limited, phoneNumber
}

// OperatorName returns the configured operator display name.
func (r *Resolver) OperatorName() string {
	return r.operatorName
}

// Normalize strips spaces, dashes and parentheses from a phone number so
// that formatting differences never change the resolved permission.
func Normalize(phoneNumber string) string {
	return strings.Map(func(c rune) rune {
		switch c {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return c
	}, phoneNumber)
}
