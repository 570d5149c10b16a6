package consent

import (
	"fmt"
	"time"

	"github.com/Hamish-Leahy/NEIS/internal/model"
)

type Kind string

const (
	KindService           Kind = "service"
	KindEvaluation        Kind = "evaluation"
	KindSurvey            Kind = "survey"
	KindCollaborativeCare Kind = "collaborative-care"
)

type Description struct {
	Kind     Kind   `json:"kind"`
	Label    string `json:"label"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

// Descriptions lists the consents captured at registration, in the order
// they are presented.
func Descriptions() []Description {
	return []Description{
		{
			Kind:     KindService,
			Label:    "Service Consent (Required)",
			Text:     "I consent to receive NEIS services and for sharing of service delivery information with my healthcare providers.",
			Required: true,
		},
		{
			Kind:  KindEvaluation,
			Label: "Evaluation and Research",
			Text:  "I consent to sharing de-identified data with the Department of Health and independent evaluators for service improvement.",
		},
		{
			Kind:  KindSurvey,
			Label: "Experience Surveys",
			Text:  "I consent to being contacted for feedback surveys about my experience with NEIS.",
		},
		{
			Kind:  KindCollaborativeCare,
			Label: "Collaborative Care",
			Text:  "I consent for my care team members to be contacted to discuss my care and planning where relevant.",
		},
	}
}

// Record holds the four independent consent flags for one registration.
type Record struct {
	Service           bool `json:"service"`
	Evaluation        bool `json:"evaluation"`
	Survey            bool `json:"survey"`
	CollaborativeCare bool `json:"collaborativeCare"`
}

func (r *Record) Set(kind Kind, value bool) error {
	switch kind {
	case KindService:
		r.Service = value
	case KindEvaluation:
		r.Evaluation = value
	case KindSurvey:
		r.Survey = value
	case KindCollaborativeCare:
		r.CollaborativeCare = value
	default:
		return fmt.Errorf("unknown consent kind %q", kind)
	}
	return nil
}

// RegistrationAllowed reports whether the mandatory service consent has
// been given. The other three flags never block registration.
func (r Record) RegistrationAllowed() bool {
	return r.Service
}

func (r Record) Durable(userID string, capturedAt time.Time) model.Consent {
	return model.Consent{
		UserID:            userID,
		Service:           r.Service,
		Evaluation:        r.Evaluation,
		Survey:            r.Survey,
		CollaborativeCare: r.CollaborativeCare,
		CapturedAt:        capturedAt,
	}
}
