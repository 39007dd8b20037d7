// AngelaMos | 2026
// entity.go

package achievement

import (
	"time"

	"github.com/carterperez-dev/portfolio-backend/internal/evidence"
)

type Type string

const (
	TypeAcademic         Type = "academic"
	TypeSports           Type = "sports"
	TypeArts             Type = "arts"
	TypeLeadership       Type = "leadership"
	TypeCommunityService Type = "community_service"
	TypeResearch         Type = "research"
	TypeEntrepreneurship Type = "entrepreneurship"
	TypeCompetition      Type = "competition"
	TypeCertification    Type = "certification"
	TypeOther            Type = "other"
)

var Types = []Type{
	TypeAcademic, TypeSports, TypeArts, TypeLeadership, TypeCommunityService,
	TypeResearch, TypeEntrepreneurship, TypeCompetition, TypeCertification, TypeOther,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryIndividual Category = "individual"
	CategoryTeam       Category = "team"
	CategoryGroup      Category = "group"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryIndividual, CategoryTeam, CategoryGroup:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Decided reports whether the review dimension is terminal.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MinRejectionReason   = 10
	MaxRejectionReason   = 1000
)

type Achievement struct {
	ID                string                `json:"id"                          bson:"_id"`
	Title             string                `json:"title"                       bson:"title"`
	Type              Type                  `json:"type"                        bson:"type"`
	Category          Category              `json:"category"                    bson:"category"`
	Description       string                `json:"description"                 bson:"description"`
	DateAwarded       time.Time             `json:"dateAwarded"                 bson:"dateAwarded"`
	StudentID         string                `json:"studentId"                   bson:"studentId"`
	Evidence          []evidence.Attachment `json:"evidence"                    bson:"evidence"`
	Status            Status                `json:"status"                      bson:"status"`
	ReviewedBy        *string               `json:"reviewedBy"                  bson:"reviewedBy"`
	ReviewedAt        *time.Time            `json:"reviewedAt"                  bson:"reviewedAt"`
	RejectionReason   *string               `json:"rejectionReason"             bson:"rejectionReason"`
	SkillsGained      []string              `json:"skillsGained"                bson:"skillsGained"`
	ExternalReference string                `json:"externalReference,omitempty" bson:"externalReference,omitempty"`
	IsPublic          bool                  `json:"isPublic"                    bson:"isPublic"`
	CreatedAt         time.Time             `json:"createdAt"                   bson:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"                   bson:"updatedAt"`
}

func (a *Achievement) OwnedBy(userID string) bool {
	return userID != "" && a.StudentID == userID
}

// Patch is a partial content update. Review fields are deliberately absent.
type Patch struct {
	Title             *string
	Description       *string
	Type              *Type
	Category          *Category
	DateAwarded       *time.Time
	SkillsGained      *[]string
	ExternalReference *string
	IsPublic          *bool
	AppendEvidence    []evidence.Attachment
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil &&
		p.Category == nil && p.DateAwarded == nil && p.SkillsGained == nil &&
		p.ExternalReference == nil && p.IsPublic == nil && len(p.AppendEvidence) == 0
}

// touchesContent reports whether p changes anything besides visibility.
func (p Patch) touchesContent() bool {
	p.IsPublic = nil
	return !p.Empty()
}

// Decision is a one-shot transition out of pending.
type Decision struct {
	Status     Status
	ReviewerID string
	Reason     *string
	At         time.Time
}

type Filter struct {
	StudentID string
	Status    Status
	Type      Type
	Category  Category
	IsPublic  *bool
	Search    string
}

type Page struct {
	Offset   int
	Limit    int
	SortBy   string
	SortDesc bool
}

type TypeCount struct {
	Type     Type  `json:"type"     bson:"_id"`
	Total    int64 `json:"total"    bson:"total"`
	Approved int64 `json:"approved" bson:"approved"`
	Pending  int64 `json:"pending"  bson:"pending"`
	Rejected int64 `json:"rejected" bson:"rejected"`
}
