package permissions

// Policy decides per record whether an actor may read or update it. Update
// also governs delete unless the policy implements DeletePolicy.
type Policy interface {
	Read(a Actor, s Scope) bool
	Update(a Actor, s Scope) bool
}

type DeletePolicy interface {
	Delete(a Actor, s Scope) bool
}

// defaultPolicies is the static registry. TaskColumn has no entry and is
// therefore unfiltered.
func defaultPolicies() map[EntityType]Policy {
	return map[EntityType]Policy{
		Organization: orgAdminPolicy{},
		Membership:   membershipPolicy{},
		Invite:       orgAdminPolicy{},
		Project:      orgAdminPolicy{},
		Task:         creatorPolicy{},
		TaskComment:  creatorPolicy{},
		TaskMetadata: creatorPolicy{},
		User:         userPolicy{},
		Profile:      ownerPolicy{},
	}
}

// orgAdminPolicy: members read, admins update.
type orgAdminPolicy struct{}

func (orgAdminPolicy) Read(a Actor, s Scope) bool   { return s.memberOfAny(a) }
func (orgAdminPolicy) Update(a Actor, s Scope) bool { return s.adminOfAny(a) }

type membershipPolicy struct{}

func (membershipPolicy) Read(a Actor, s Scope) bool   { return s.memberOfAny(a) }
func (membershipPolicy) Update(Actor, Scope) bool     { return true }
func (membershipPolicy) Delete(a Actor, s Scope) bool { return s.memberOfAny(a) }

// creatorPolicy: members read, only the creator updates. For task metadata
// the creator is the task's creator.
type creatorPolicy struct{}

func (creatorPolicy) Read(a Actor, s Scope) bool { return s.memberOfAny(a) }

func (creatorPolicy) Update(a Actor, s Scope) bool {
	return s.CreatorID != 0 && s.CreatorID == a.UserID
}

type userPolicy struct{}

func (userPolicy) Read(a Actor, s Scope) bool {
	return s.OwnerID == a.UserID || s.memberOfAny(a)
}

func (userPolicy) Update(a Actor, s Scope) bool { return s.OwnerID == a.UserID }

type ownerPolicy struct{}

func (ownerPolicy) Read(a Actor, s Scope) bool   { return s.OwnerID == a.UserID }
func (ownerPolicy) Update(a Actor, s Scope) bool { return s.OwnerID == a.UserID }
