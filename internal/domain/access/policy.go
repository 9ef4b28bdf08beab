package access

import (
	"slices"

	"scholarsphere/internal/domain/users"
	"scholarsphere/internal/domain/works"
)

const (
	CapEdit           = "edit"
	CapCreateVersion  = "create_version"
	CapMintDOI        = "mint_doi"
	CapEditVisibility = "edit_visibility"
)

// WorkPolicy answers what a user may do with a work.
type WorkPolicy struct {
	User users.User
	Work *works.Work
}

func ForWork(u users.User, w *works.Work) WorkPolicy {
	return WorkPolicy{User: u, Work: w}
}

func (p WorkPolicy) Show() bool { return true }

func (p WorkPolicy) Edit() bool { return p.editable() }

// CreateVersion is refused while a draft exists, even though nothing at the
// database level prevents a second draft.
func (p WorkPolicy) CreateVersion() bool {
	return p.editable() && p.Work.DraftVersion() == nil
}

func (p WorkPolicy) MintDOI() bool {
	return p.published() && p.editable()
}

func (p WorkPolicy) EditVisibility() bool {
	if p.User.Admin {
		return true
	}
	return p.editable() && (!p.published() || !p.Work.OpenAccess())
}

// Capabilities lists the granted capabilities, for API responses.
func (p WorkPolicy) Capabilities() []string {
	caps := []string{}
	if p.Edit() {
		caps = append(caps, CapEdit)
	}
	if p.CreateVersion() {
		caps = append(caps, CapCreateVersion)
	}
	if p.MintDOI() {
		caps = append(caps, CapMintDOI)
	}
	if p.EditVisibility() {
		caps = append(caps, CapEditVisibility)
	}
	return caps
}

func (p WorkPolicy) editable() bool {
	return p.owner() || p.proxy() || p.editAccess() || p.User.Admin
}

func (p WorkPolicy) owner() bool {
	return p.User.ActorID != 0 && p.Work.DepositorID == p.User.ActorID
}

func (p WorkPolicy) proxy() bool {
	if p.Work.ProxyDepositorID == nil {
		return false
	}
	return p.User.ActorID != 0 && *p.Work.ProxyDepositorID == p.User.ActorID
}

func (p WorkPolicy) editAccess() bool {
	if p.User.AccessID != "" && slices.Contains(p.Work.EditUsers, p.User.AccessID) {
		return true
	}
	for _, g := range p.User.Groups {
		if slices.Contains(p.Work.EditGroups, g) {
			return true
		}
	}
	return false
}

func (p WorkPolicy) published() bool {
	return p.Work.LatestPublishedVersion() != nil
}
