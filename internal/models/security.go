package models

// SecurityPassInfo is the trimmed pass row shown on the security desk.
type SecurityPassInfo struct {
	ID            int64      `json:"id"`
	VisitorName   string     `json:"visitorName"`
	PassCode      string     `json:"passCode"`
	Status        PassStatus `json:"status"`
	VisitDateTime Timestamp  `json:"visitDateTime"`
	EmployeeName  string     `json:"employeeName,omitempty"`
	Actions       []Action   `json:"actions,omitempty"`
}

// SecurityDashboard holds today's visitors split into two independently paginated lists.
type SecurityDashboard struct {
	ApprovedForEntry Page[SecurityPassInfo] `json:"approvedForEntry"`
	CurrentlyOnSite  Page[SecurityPassInfo] `json:"currentlyOnSite"`
}
