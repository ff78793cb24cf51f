package domain

import "time"

type ReportReason string

const (
	ReportSpam                 ReportReason = "spam"
	ReportHarassment           ReportReason = "harassment"
	ReportInappropriateContent ReportReason = "inappropriate_content"
	ReportImpersonation        ReportReason = "impersonation"
	ReportOther                ReportReason = "other"
)

// Valid indica si el motivo pertenece al catalogo aceptado.
func (r ReportReason) Valid() bool {
	switch r {
	case ReportSpam, ReportHarassment, ReportInappropriateContent, ReportImpersonation, ReportOther:
		return true
	}
	return false
}

type Report struct {
	ID             int64        `json:"id"`
	ReporterID     int64        `json:"reporter_id"`
	ReportedUserID int64        `json:"reported_user_id"`
	Reason         ReportReason `json:"reason"`
	Details        string       `json:"details"`
	IsResolved     bool         `json:"is_resolved"`
	CreatedAt      time.Time    `json:"created_at"`
}
