package domain

import "github.com/authapp/zitadel-sub003/pkg/eventstore"

// Org event vocabulary, including org members and the org label policy.
const (
	OrgAdded       eventstore.EventType = "org.added"
	OrgChanged     eventstore.EventType = "org.changed"
	OrgDeactivated eventstore.EventType = "org.deactivated"
	OrgReactivated eventstore.EventType = "org.reactivated"
	OrgRemoved     eventstore.EventType = "org.removed"

	OrgMemberAdded   eventstore.EventType = "org.member.added"
	OrgMemberChanged eventstore.EventType = "org.member.changed"
	OrgMemberRemoved eventstore.EventType = "org.member.removed"

	LabelPolicyAdded   eventstore.EventType = "org.policy.label.added"
	LabelPolicyChanged eventstore.EventType = "org.policy.label.changed"
	LabelPolicyRemoved eventstore.EventType = "org.policy.label.removed"

	InstanceRemoved eventstore.EventType = "instance.removed"
)

// UniqueOrgName is the unique-constraint namespace for org names.
const UniqueOrgName = "org_names"

type OrgAddedPayload struct {
	Name string `json:"name"`
}

type OrgChangedPayload struct {
	Name string `json:"name"`
}

type MemberAddedPayload struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type MemberChangedPayload struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type MemberRemovedPayload struct {
	UserID string `json:"userId"`
}

// UniqueMember is the unique-constraint namespace guarding one membership
// per (org, user).
const UniqueMember = "org_members"

type LabelPolicyAddedPayload struct {
	PrimaryColor    string `json:"primaryColor"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	WarnColor       string `json:"warnColor,omitempty"`
	FontColor       string `json:"fontColor,omitempty"`
	HideLoginNameSuffix bool `json:"hideLoginNameSuffix,omitempty"`
}

type LabelPolicyChangedPayload struct {
	PrimaryColor        *string `json:"primaryColor,omitempty"`
	BackgroundColor     *string `json:"backgroundColor,omitempty"`
	WarnColor           *string `json:"warnColor,omitempty"`
	FontColor           *string `json:"fontColor,omitempty"`
	HideLoginNameSuffix *bool   `json:"hideLoginNameSuffix,omitempty"`
}

// IsEmpty reports whether the change carries no field at all.
func (p *LabelPolicyChangedPayload) IsEmpty() bool {
	return p.PrimaryColor == nil && p.BackgroundColor == nil && p.WarnColor == nil &&
		p.FontColor == nil && p.HideLoginNameSuffix == nil
}
