package models

// Person states
const (
	PersonActive   = "Active"
	PersonDisabled = "Disabled"
)

// Built-in rights groups
const (
	RightsAdmin    = "Admin"
	RightsStandard = "Standard"
)

// Person represents a registered user of the site
type Person struct {
	Base
	Username     string   `json:"username" gorm:"type:varchar(32);uniqueIndex;not null"`
	Email        string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName  string   `json:"display_name" gorm:"type:varchar(100)"`
	PasswordHash string   `json:"-" gorm:"type:varchar(100)"`
	State        string   `json:"state" gorm:"type:varchar(16);not null"`
	Rights       []Rights `json:"rights,omitempty" gorm:"many2many:person_rights;"`
}

func (Person) RecordType() string { return "Person" }
func (Person) TableName() string  { return "people" }

// InRights reports whether the person belongs to the named rights group.
// Admin implicitly holds every right.
func (p *Person) InRights(name string) bool {
	for _, r := range p.Rights {
		if r.Name == name || r.Name == RightsAdmin {
			return true
		}
	}
	return false
}

// Active reports whether the person may log in.
func (p *Person) Active() bool {
	return p.State == PersonActive
}

// Rights is a named group of people used for access control
type Rights struct {
	Base
	Name string `json:"name" gorm:"type:varchar(64);uniqueIndex;not null"`
}

func (Rights) RecordType() string { return "Rights" }
func (Rights) TableName() string  { return "rights" }
