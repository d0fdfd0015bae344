package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymousReadsAllowed(t *testing.T) {
	for _, op := range []Operation{List, Retrieve} {
		d := Check(Request{Op: op}, PostPolicy...)
		assert.True(t, d.Allowed, "op %d", op)
	}
}

func TestAnonymousWritesDenied(t *testing.T) {
	for _, op := range []Operation{Create, Update, PartialUpdate, Destroy} {
		d := Check(Request{Op: op}, PostPolicy...)
		assert.False(t, d.Allowed, "op %d", op)
		assert.Equal(t, KindUnauthenticated, d.Kind)
		assert.Equal(t, DetailNotAuthenticated, d.Detail)
	}
}

func TestAuthenticatedCreateAllowed(t *testing.T) {
	d := Check(Request{Authenticated: true, CallerID: 1, Op: Create}, PostPolicy...)
	assert.True(t, d.Allowed)
}

func TestOwnerMayMutate(t *testing.T) {
	for _, op := range []Operation{Update, PartialUpdate, Destroy} {
		d := Check(Request{Authenticated: true, CallerID: 1, OwnerID: 1, Op: op}, PostPolicy...)
		assert.True(t, d.Allowed, "op %d", op)
	}
}

func TestNonOwnerMutationForbidden(t *testing.T) {
	for _, op := range []Operation{Update, PartialUpdate, Destroy} {
		d := Check(Request{Authenticated: true, CallerID: 2, OwnerID: 1, Op: op}, PostPolicy...)
		assert.False(t, d.Allowed, "op %d", op)
		assert.Equal(t, KindForbidden, d.Kind)
		assert.Equal(t, DetailForbidden, d.Detail)
	}
}

func TestShortCircuitOrder(t *testing.T) {
	// An anonymous write against someone else's resource must surface as 401,
	// not 403: the authentication predicate runs first.
	d := Check(Request{OwnerID: 1, Op: Destroy}, PostPolicy...)
	assert.Equal(t, KindUnauthenticated, d.Kind)
}

func TestEmptyChainAllows(t *testing.T) {
	d := Check(Request{Op: Destroy})
	assert.True(t, d.Allowed)
}
