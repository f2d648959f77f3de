package domain

// Gender is the person register's gender value. The interchange feed carries
// numeric codes; only a closed set is accepted.
type Gender string

const (
	GenderMale         Gender = "male"
	GenderFemale       Gender = "female"
	GenderOther        Gender = "other"
	GenderNotAvailable Gender = "not_available"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderNotAvailable:
		return true
	}
	return false
}
