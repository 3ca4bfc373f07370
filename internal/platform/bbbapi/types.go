package bbbapi

import (
	"bytes"
	"encoding/json"
)

// SearchResponse matches /v2/orgs/search
type SearchResponse struct {
	TotalResults  int            `json:"totalResults"`
	PageNumber    int            `json:"pageNumber"`
	PageSize      int            `json:"pageSize"`
	SearchResults []Organization `json:"searchResults"`
}

// Organization is one business listing. Every field is optional upstream;
// missing values decode to their zero value.
type Organization struct {
	OrganizationName               string          `json:"organizationName"`
	BBBRating                      Text            `json:"bbbRating"`
	IsBBBAccredited                *bool           `json:"isBBBAccredited"`
	PrimaryCategory                string          `json:"primaryCategory"`
	ProfileURL                     string          `json:"profileUrl"`
	ContactFirstName               string          `json:"contactFirstName"`
	ContactLastName                string          `json:"contactLastName"`
	ContactEmailAddress            []string        `json:"contactEmailAddress"`
	Phones                         []string        `json:"phones"`
	Address                        string          `json:"address"`
	City                           string          `json:"city"`
	StateProvince                  string          `json:"stateProvince"`
	PostalCode                     Text            `json:"postalCode"`
	BBBID                          Text            `json:"bbbId"`
	BusinessID                     Text            `json:"businessId"`
	DateBusinessStarted            Text            `json:"dateBusinessStarted"`
	AccreditationDate              Text            `json:"accreditationDate"`
	AccreditationStatusLastChanged Text            `json:"accreditationStatusLastChanged"`
	BusinessURLs                   []string        `json:"businessURLs"`
	LatLng                         string          `json:"latLng"`
	LicenseDetails                 []LicenseDetail `json:"licenseDetails"`
}

type LicenseDetail struct {
	LicenseNumber     Text   `json:"licenseNumber"`
	IssueDate         Text   `json:"issueDate"`
	ExpirationDate    Text   `json:"expirationDate"`
	SuspensionDate    Text   `json:"suspensionDate"`
	RevocationDate    Text   `json:"revocationDate"`
	LicenseAgencyName string `json:"licenseAgencyName"`
	DetailsURL        string `json:"detailsUrl"`
	LicenseStatusID   Text   `json:"licenseStatusId"`
}

// Text decodes a JSON string, number or boolean into its textual form. The
// Partner API is not consistent about quoting ids and dates.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

func (t Text) String() string {
	return string(t)
}
