package models

// DashboardStats is the admin console overview.
type DashboardStats struct {
	Users           int64  `json:"users"`
	Products        int64  `json:"products"`
	Articles        int64  `json:"articles"`
	News            int64  `json:"news"`
	Comments        int64  `json:"comments"`
	Likes           int64  `json:"likes"`
	ContactMessages int64  `json:"contact_messages"`
	LatestUsers     []User `gorm:"-" json:"latest_users"`
}
