package model

import "errors"

// Communities tracked across both datasets, in display order.
var Communities = []string{"OC", "BC", "BCM", "MBC", "SC", "SCA", "ST"}

// Sheet is one tab of a fetched spreadsheet, untyped. Header holds the first
// row; Rows hold everything below it.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// CutoffRow is one college/branch row of the admission cutoff dataset.
// Cutoff marks and general ranks are keyed by community; values that were
// blank or non-numeric in the source are absent from the maps.
type CutoffRow struct {
	CollegeCode string             `json:"college_code"`
	CollegeName string             `json:"college_name"`
	Branch      string             `json:"branch"`
	Zone        string             `json:"zone"`
	Cutoffs     map[string]float64 `json:"cutoffs"`
	Ranks       map[string]float64 `json:"ranks"`
}

// CollegeOption is the "code - name" value shown in college select lists.
func (r CutoffRow) CollegeOption() string {
	return r.CollegeCode + " - " + r.CollegeName
}

// VacancySeat is one row of the vacancy dataset melted to long form: one
// (college, branch, community) tuple per row.
type VacancySeat struct {
	CollegeCode string `json:"college_code"`
	CollegeName string `json:"college_name"`
	BranchCode  string `json:"branch_code"`
	BranchName  string `json:"branch_name"`
	Community   string `json:"community"`
	Seats       int    `json:"seats"`
}

// CommunitySeats is an aggregated seat count for one community, the input a
// bar chart renders directly.
type CommunitySeats struct {
	Community string `json:"community"`
	Seats     int    `json:"seats"`
}

// CutoffFilter narrows the cutoff dataset. Empty fields match everything.
type CutoffFilter struct {
	CollegeCode string
	Community   string
	Branch      string
	Zone        string
}

// VacancyFilter narrows one vacancy category. Empty fields match everything;
// an empty Category selects the first sheet of the workbook.
type VacancyFilter struct {
	Category    string
	BranchCode  string
	Community   string
	CollegeCode string
}

// CutoffOptions lists the distinct filter values the cutoff view offers.
type CutoffOptions struct {
	Colleges    []string `json:"colleges"`
	Communities []string `json:"communities"`
	Branches    []string `json:"branches"`
	Zones       []string `json:"zones"`
}

var (
	// ErrDatasetUnavailable is returned when a remote spreadsheet cannot be
	// fetched or parsed. The session layer is unaffected; the caller sees a
	// degraded view and may retry manually.
	ErrDatasetUnavailable = errors.New("dataset unavailable")

	// ErrUnknownCategory is returned for a vacancy category (sheet) that does
	// not exist in the workbook
	ErrUnknownCategory = errors.New("unknown vacancy category")
)

// CodeDataUnavailable is the API error code for a failed dataset fetch.
const CodeDataUnavailable = "DATA_UNAVAILABLE"
