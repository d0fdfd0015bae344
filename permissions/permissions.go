package permissions

// Operation identifies what a caller is attempting against a resource.
type Operation int

const (
	List Operation = iota
	Retrieve
	Create
	Update
	PartialUpdate
	Destroy
)

func (op Operation) writes() bool {
	switch op {
	case Create, Update, PartialUpdate, Destroy:
		return true
	}
	return false
}

// Kind tags a denial so handlers can map it to the right status code.
type Kind int

const (
	KindAllowed Kind = iota
	KindUnauthenticated
	KindForbidden
)

const (
	// DetailNotAuthenticated is the body sent with 401 denials.
	DetailNotAuthenticated = "Authentication credentials were not provided."
	// DetailForbidden is the body sent with 403 denials.
	DetailForbidden = "You do not have permission to perform this action."
)

// Request carries the identity facts a predicate may consult. OwnerID is
// zero for operations that do not target an existing resource.
type Request struct {
	Authenticated bool
	CallerID      uint
	OwnerID       uint
	Op            Operation
}

// Decision is the outcome of evaluating a predicate or a chain of them.
type Decision struct {
	Allowed bool
	Kind    Kind
	Detail  string
}

// Predicate votes on a request: allow (keep evaluating) or deny (short-circuit).
type Predicate func(Request) Decision

func allow() Decision { return Decision{Allowed: true, Kind: KindAllowed} }

// IsAuthenticatedOrReadOnly denies anonymous write operations.
func IsAuthenticatedOrReadOnly(req Request) Decision {
	if req.Op.writes() && !req.Authenticated {
		return Decision{Kind: KindUnauthenticated, Detail: DetailNotAuthenticated}
	}
	return allow()
}

// IsOwnerOrReadOnly denies mutation of an existing resource by anyone but
// its owner. Creation is not its concern; IsAuthenticatedOrReadOnly gates it.
func IsOwnerOrReadOnly(req Request) Decision {
	switch req.Op {
	case Update, PartialUpdate, Destroy:
		if !req.Authenticated {
			return Decision{Kind: KindUnauthenticated, Detail: DetailNotAuthenticated}
		}
		if req.CallerID != req.OwnerID {
			return Decision{Kind: KindForbidden, Detail: DetailForbidden}
		}
	}
	return allow()
}

// Check evaluates predicates in order, short-circuiting on the first denial.
func Check(req Request, preds ...Predicate) Decision {
	for _, p := range preds {
		if d := p(req); !d.Allowed {
			return d
		}
	}
	return allow()
}

// PostPolicy is the ordered predicate chain guarding post endpoints.
var PostPolicy = []Predicate{IsAuthenticatedOrReadOnly, IsOwnerOrReadOnly}
