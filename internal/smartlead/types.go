package smartlead

// Lead is one row of a lead upload. CustomFields holds at most 20 entries.
type Lead struct {
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	Email           string            `json:"email"`
	PhoneNumber     *string           `json:"phone_number,omitempty"`
	CompanyName     string            `json:"company_name"`
	Website         string            `json:"website,omitempty"`
	Location        string            `json:"location"`
	CustomFields    map[string]string `json:"custom_fields"`
	LinkedinProfile string            `json:"linkedin_profile"`
	CompanyURL      string            `json:"company_url"`
}

type uploadSettings struct {
	IgnoreGlobalBlockList               bool `json:"ignore_global_block_list"`
	IgnoreUnsubscribeList               bool `json:"ignore_unsubscribe_list"`
	IgnoreCommunityBounceList           bool `json:"ignore_community_bounce_list"`
	IgnoreDuplicateLeadsInOtherCampaign bool `json:"ignore_duplicate_leads_in_other_campaign"`
}

type uploadRequest struct {
	LeadList []Lead         `json:"lead_list"`
	Settings uploadSettings `json:"settings"`
}

type UploadResult struct {
	OK                     bool     `json:"ok"`
	UploadCount            int      `json:"upload_count"`
	TotalLeads             int      `json:"total_leads"`
	BlockCount             int      `json:"block_count"`
	DuplicateCount         int      `json:"duplicate_count"`
	InvalidEmailCount      int      `json:"invalid_email_count"`
	InvalidEmails          []string `json:"invalid_emails"`
	AlreadyAddedToCampaign int      `json:"already_added_to_campaign"`
	UnsubscribedLeads      []string `json:"unsubscribed_leads"`
	IsLeadLimitExhausted   bool     `json:"is_lead_limit_exhausted"`
	LeadImportStoppedCount int      `json:"lead_import_stopped_count"`
	BounceCount            int      `json:"bounce_count"`
}

// Campaign statuses reported by the platform.
const (
	StatusDrafted   = "DRAFTED"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusStopped   = "STOPPED"
	StatusPaused    = "PAUSED"
)

type Campaign struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	ClientID  *int64 `json:"client_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type CreatedCampaign struct {
	OK        bool   `json:"ok"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}
