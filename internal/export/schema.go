package export

import (
	"fmt"
	"strings"

	"bbbpartner/internal/platform/bbbapi"
)

// Columns is the header of every result file, in output order.
var Columns = []string{
	"Business Name", "BBB Rating", "Accredited", "Category", "BBB Profile URL",
	"Owner Name", "Owner Email", "Phone Number", "Address", "City", "State", "Zip Code",
	"BBB ID", "Business ID", "Business Start Date", "Accreditation Date", "Accreditation Status Last Changed",
	"Website", "Latitude", "Longitude",
	"License Agency Name", "License Agency URL", "License Number", "License Issue Date",
	"License Expiration Date", "License Suspension Date", "License Revocation Date",
	"License Status ID", "License Status",
}

const (
	RatingNotRated     = "NR"
	AccreditedLabel    = "Accredited"
	NotAccreditedLabel = "Not Accredited"
	LicenseActive      = "Active"
)

var licenseStatuses = map[string]string{
	"3902": "Active",
	"3903": "Expired",
	"3904": "Suspended",
	"3905": "Revoked",
	"3906": "Inactive",
}

// Row is one business projected onto Columns.
type Row struct {
	Name                  string
	Rating                string
	Accredited            string
	Category              string
	ProfileURL            string
	OwnerName             string
	OwnerEmail            string
	Phone                 string
	Address               string
	City                  string
	State                 string
	ZipCode               string
	BBBID                 string
	BusinessID            string
	BusinessStartDate     string
	AccreditationDate     string
	AccreditationChanged  string
	Website               string
	Latitude              string
	Longitude             string
	LicenseAgencyName     string
	LicenseAgencyURL      string
	LicenseNumber         string
	LicenseIssueDate      string
	LicenseExpirationDate string
	LicenseSuspensionDate string
	LicenseRevocationDate string
	LicenseStatusID       string
	LicenseStatus         string
}

func (r Row) Values() []string {
	vals := []string{
		r.Name, r.Rating, r.Accredited, r.Category, r.ProfileURL,
		r.OwnerName, r.OwnerEmail, r.Phone, r.Address, r.City, r.State, r.ZipCode,
		r.BBBID, r.BusinessID, r.BusinessStartDate, r.AccreditationDate, r.AccreditationChanged,
		r.Website, r.Latitude, r.Longitude,
		r.LicenseAgencyName, r.LicenseAgencyURL, r.LicenseNumber, r.LicenseIssueDate,
		r.LicenseExpirationDate, r.LicenseSuspensionDate, r.LicenseRevocationDate,
		r.LicenseStatusID, r.LicenseStatus,
	}
	for i, v := range vals {
		vals[i] = strings.ReplaceAll(v, "\x00", "")
	}
	return vals
}

// ParseRow is the inverse of Values.
func ParseRow(vals []string) (Row, error) {
	if len(vals) != len(Columns) {
		return Row{}, fmt.Errorf("row has %d columns, want %d", len(vals), len(Columns))
	}
	return Row{
		Name: vals[0], Rating: vals[1], Accredited: vals[2], Category: vals[3], ProfileURL: vals[4],
		OwnerName: vals[5], OwnerEmail: vals[6], Phone: vals[7], Address: vals[8], City: vals[9], State: vals[10], ZipCode: vals[11],
		BBBID: vals[12], BusinessID: vals[13], BusinessStartDate: vals[14], AccreditationDate: vals[15], AccreditationChanged: vals[16],
		Website: vals[17], Latitude: vals[18], Longitude: vals[19],
		LicenseAgencyName: vals[20], LicenseAgencyURL: vals[21], LicenseNumber: vals[22], LicenseIssueDate: vals[23],
		LicenseExpirationDate: vals[24], LicenseSuspensionDate: vals[25], LicenseRevocationDate: vals[26],
		LicenseStatusID: vals[27], LicenseStatus: vals[28],
	}, nil
}

// Project flattens an organization. Absent fields become empty strings.
func Project(o bbbapi.Organization) Row {
	r := Row{
		Name:                 o.OrganizationName,
		Rating:               rating(o.BBBRating.String()),
		Accredited:           accredited(o.IsBBBAccredited),
		Category:             o.PrimaryCategory,
		ProfileURL:           o.ProfileURL,
		OwnerName:            joinNonEmpty(o.ContactFirstName, o.ContactLastName),
		OwnerEmail:           first(o.ContactEmailAddress),
		Phone:                first(o.Phones),
		Address:              o.Address,
		City:                 o.City,
		State:                o.StateProvince,
		ZipCode:              zip5(o.PostalCode.String()),
		BBBID:                o.BBBID.String(),
		BusinessID:           o.BusinessID.String(),
		BusinessStartDate:    o.DateBusinessStarted.String(),
		AccreditationDate:    o.AccreditationDate.String(),
		AccreditationChanged: o.AccreditationStatusLastChanged.String(),
		Website:              first(o.BusinessURLs),
	}
	r.Latitude, r.Longitude = splitLatLng(o.LatLng)

	if len(o.LicenseDetails) > 0 {
		l := o.LicenseDetails[0]
		r.LicenseAgencyName = l.LicenseAgencyName
		r.LicenseAgencyURL = l.DetailsURL
		r.LicenseNumber = l.LicenseNumber.String()
		r.LicenseIssueDate = l.IssueDate.String()
		r.LicenseExpirationDate = l.ExpirationDate.String()
		r.LicenseSuspensionDate = l.SuspensionDate.String()
		r.LicenseRevocationDate = l.RevocationDate.String()
		r.LicenseStatusID = l.LicenseStatusID.String()
		r.LicenseStatus = LicenseStatusName(r.LicenseStatusID)
	}
	return r
}

// LicenseStatusName maps a Partner API license status id to its label.
func LicenseStatusName(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := licenseStatuses[id]; ok {
		return name
	}
	return "Unknown"
}

// IsRated reports whether the row carries a BBB letter grade.
func (r Row) IsRated() bool {
	return r.Rating != "" && r.Rating != RatingNotRated
}

func (r Row) IsAccredited() bool {
	return r.Accredited == AccreditedLabel
}

func (r Row) IsContractor() bool {
	return strings.Contains(strings.ToLower(r.Category), "contractor")
}

func (r Row) IsLicensed() bool {
	return r.LicenseNumber != ""
}

func rating(v string) string {
	if v == "NA" {
		return RatingNotRated
	}
	return v
}

func accredited(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return AccreditedLabel
	default:
		return NotAccreditedLabel
	}
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func zip5(v string) string {
	if len(v) > 5 {
		return v[:5]
	}
	return v
}

func splitLatLng(v string) (string, string) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
