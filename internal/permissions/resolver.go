package permissions

type Resolver struct {
	policies     map[EntityType]Policy
	skipSideload map[EntityType]bool
}

type Option func(*Resolver)

// WithSkipSideload leaves the given types unfiltered when they are reached
// through a parent record.
func WithSkipSideload(types ...EntityType) Option {
	return func(r *Resolver) {
		for _, t := range types {
			r.skipSideload[t] = true
		}
	}
}

// WithPolicy registers or replaces the policy for a type. A nil policy
// removes the registration.
func WithPolicy(t EntityType, p Policy) Option {
	return func(r *Resolver) {
		if p == nil {
			delete(r.policies, t)
			return
		}
		r.policies[t] = p
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		policies:     defaultPolicies(),
		skipSideload: map[EntityType]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allows reports whether the actor may perform action on one record.
func (r *Resolver) Allows(a Actor, action Action, t EntityType, access Access, s Scope) bool {
	check := r.check(a, action, t, access)
	return check == nil || check(a, s)
}

// check returns the predicate to apply, or nil when records pass unfiltered.
func (r *Resolver) check(a Actor, action Action, t EntityType, access Access) func(Actor, Scope) bool {
	if a.Superuser {
		return nil
	}
	policy, ok := r.policies[t]
	if !ok {
		return nil
	}
	if access == Sideload && r.skipSideload[t] {
		return nil
	}
	switch action {
	case Read:
		return policy.Read
	case Update:
		return policy.Update
	case Delete:
		if d, ok := policy.(DeletePolicy); ok {
			return d.Delete
		}
		return policy.Update
	default:
		return nil
	}
}

// Filter returns the items the actor may perform action on, in their
// original order. It never errors and only ever narrows, so applying it to an
// already filtered slice is a no-op.
func Filter[T any](r *Resolver, a Actor, action Action, t EntityType, access Access, items []T, scope func(T) Scope) []T {
	check := r.check(a, action, t, access)
	if check == nil {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if check(a, scope(item)) {
			out = append(out, item)
		}
	}
	return out
}
