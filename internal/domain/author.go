package domain

// Author identity is resolved ORCID-first, then by exact full name.
// Collaborative groups ("The XYZ Consortium") are authors with an empty
// surname. Name-only matching can merge distinct people who share a name;
// accepted limitation.
type Author struct {
	ID          int
	Given       string
	Surname     string
	Institution string
	Email       string
	ORCID       string
}

// FullName joins given name and surname; group authors have only Given.
func (a Author) FullName() string {
	if a.Surname == "" {
		return a.Given
	}
	return a.Given + " " + a.Surname
}
