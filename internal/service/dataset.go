package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tneaboard/internal/cache"
	"tneaboard/internal/model"
	"tneaboard/internal/repository"
)

// vacancyDataset is the cacheable parsed form of the vacancy workbook.
// Categories keeps the workbook's sheet order.
type vacancyDataset struct {
	Categories []string                       `json:"categories"`
	Seats      map[string][]model.VacancySeat `json:"seats"`
}

// DatasetService fetches the two remote spreadsheets and shapes them into the
// typed rows the dashboard filters and aggregates. It only runs behind a
// validated session; a fetch failure degrades the view and nothing else.
type DatasetService struct {
	cutoffSource  repository.SheetSource
	vacancySource repository.SheetSource
	cache         cache.DatasetCache // optional
	logger        *zap.Logger
}

func NewDatasetService(cutoffSource, vacancySource repository.SheetSource, logger *zap.Logger) *DatasetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetService{
		cutoffSource:  cutoffSource,
		vacancySource: vacancySource,
		logger:        logger,
	}
}

// SetCache wires the optional dataset cache.
func (s *DatasetService) SetCache(c cache.DatasetCache) {
	s.cache = c
}

// Cutoffs returns the cutoff dataset narrowed by the filter. A community
// filter trims each row's cutoff/rank maps to that community, mirroring the
// original column selection.
func (s *DatasetService) Cutoffs(ctx context.Context, filter model.CutoffFilter) ([]model.CutoffRow, error) {
	rows, err := s.loadCutoffs(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]model.CutoffRow, 0, len(rows))
	for _, row := range rows {
		if filter.CollegeCode != "" && row.CollegeCode != filter.CollegeCode {
			continue
		}
		if filter.Branch != "" && row.Branch != filter.Branch {
			continue
		}
		if filter.Zone != "" && row.Zone != filter.Zone {
			continue
		}
		if filter.Community != "" {
			row = trimToCommunity(row, filter.Community)
		}
		filtered = append(filtered, row)
	}
	return filtered, nil
}

// CutoffOptions lists the distinct filter values the cutoff view offers.
func (s *DatasetService) CutoffOptions(ctx context.Context) (*model.CutoffOptions, error) {
	rows, err := s.loadCutoffs(ctx)
	if err != nil {
		return nil, err
	}

	colleges := make(map[string]struct{})
	branches := make(map[string]struct{})
	zones := make(map[string]struct{})
	for _, row := range rows {
		colleges[row.CollegeOption()] = struct{}{}
		if row.Branch != "" {
			branches[row.Branch] = struct{}{}
		}
		if row.Zone != "" {
			zones[row.Zone] = struct{}{}
		}
	}

	return &model.CutoffOptions{
		Colleges:    sortedKeys(colleges),
		Communities: append([]string(nil), model.Communities...),
		Branches:    sortedKeys(branches),
		Zones:       sortedKeys(zones),
	}, nil
}

// Categories lists the vacancy workbook's sheet names in workbook order.
func (s *DatasetService) Categories(ctx context.Context) ([]string, error) {
	dataset, err := s.loadVacancies(ctx)
	if err != nil {
		return nil, err
	}
	return dataset.Categories, nil
}

// Vacancies returns one category of the vacancy dataset, melted long and
// narrowed by the filter. An empty category selects the first sheet.
func (s *DatasetService) Vacancies(ctx context.Context, filter model.VacancyFilter) ([]model.VacancySeat, error) {
	dataset, err := s.loadVacancies(ctx)
	if err != nil {
		return nil, err
	}

	category := filter.Category
	if category == "" {
		if len(dataset.Categories) == 0 {
			return nil, model.ErrUnknownCategory
		}
		category = dataset.Categories[0]
	}

	seats, ok := dataset.Seats[category]
	if !ok {
		return nil, model.ErrUnknownCategory
	}

	filtered := make([]model.VacancySeat, 0, len(seats))
	for _, seat := range seats {
		if filter.BranchCode != "" && seat.BranchCode != filter.BranchCode {
			continue
		}
		if filter.Community != "" && seat.Community != filter.Community {
			continue
		}
		if filter.CollegeCode != "" && seat.CollegeCode != filter.CollegeCode {
			continue
		}
		filtered = append(filtered, seat)
	}
	return filtered, nil
}

// SeatsByCommunity aggregates the filtered vacancy rows into one seat total
// per community, in canonical community order. This feeds the summary chart.
func (s *DatasetService) SeatsByCommunity(ctx context.Context, filter model.VacancyFilter) ([]model.CommunitySeats, error) {
	seats, err := s.Vacancies(ctx, filter)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, seat := range seats {
		totals[seat.Community] += seat.Seats
	}

	summary := make([]model.CommunitySeats, 0, len(totals))
	for _, community := range model.Communities {
		if total, ok := totals[community]; ok {
			summary = append(summary, model.CommunitySeats{Community: community, Seats: total})
		}
	}
	return summary, nil
}

func (s *DatasetService) loadCutoffs(ctx context.Context) ([]model.CutoffRow, error) {
	var rows []model.CutoffRow
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, cache.CutoffKey, &rows)
		if err != nil {
			s.logger.Warn("cutoff cache read failed", zap.Error(err))
		} else if hit {
			return rows, nil
		}
	}

	sheets, err := s.cutoffSource.Fetch(ctx)
	if err != nil {
		s.logger.Warn("cutoff fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", model.ErrDatasetUnavailable, err)
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", model.ErrDatasetUnavailable)
	}

	rows = shapeCutoffs(sheets[0])

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.CutoffKey, rows); err != nil {
			s.logger.Warn("cutoff cache write failed", zap.Error(err))
		}
	}
	return rows, nil
}

func (s *DatasetService) loadVacancies(ctx context.Context) (*vacancyDataset, error) {
	var dataset vacancyDataset
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, cache.VacancyKey, &dataset)
		if err != nil {
			s.logger.Warn("vacancy cache read failed", zap.Error(err))
		} else if hit {
			return &dataset, nil
		}
	}

	sheets, err := s.vacancySource.Fetch(ctx)
	if err != nil {
		s.logger.Warn("vacancy fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", model.ErrDatasetUnavailable, err)
	}

	dataset = vacancyDataset{Seats: make(map[string][]model.VacancySeat)}
	for _, sheet := range sheets {
		dataset.Categories = append(dataset.Categories, sheet.Name)
		dataset.Seats[sheet.Name] = meltVacancySheet(sheet)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.VacancyKey, dataset); err != nil {
			s.logger.Warn("vacancy cache write failed", zap.Error(err))
		}
	}
	return &dataset, nil
}

// shapeCutoffs turns the raw cutoff sheet into typed rows. The source columns
// are CL, College, Br, zone plus <community>_C (cutoff mark) and
// <community>_GR (general rank) pairs; non-numeric marks are dropped.
func shapeCutoffs(sheet model.Sheet) []model.CutoffRow {
	index := headerIndex(sheet.Header)

	clCol := column(index, "CL")
	collegeCol := column(index, "COLLEGE")
	branchCol := column(index, "BR")
	zoneCol := column(index, "ZONE")

	rows := make([]model.CutoffRow, 0, len(sheet.Rows))
	for _, raw := range sheet.Rows {
		row := model.CutoffRow{
			CollegeCode: cell(raw, clCol),
			CollegeName: cell(raw, collegeCol),
			Branch:      cell(raw, branchCol),
			Zone:        cell(raw, zoneCol),
			Cutoffs:     make(map[string]float64),
			Ranks:       make(map[string]float64),
		}
		if row.CollegeCode == "" && row.CollegeName == "" {
			continue
		}

		for _, community := range model.Communities {
			if col, ok := index[community+"_C"]; ok {
				if value, err := strconv.ParseFloat(cell(raw, col), 64); err == nil {
					row.Cutoffs[community] = value
				}
			}
			if col, ok := index[community+"_GR"]; ok {
				if value, err := strconv.ParseFloat(cell(raw, col), 64); err == nil {
					row.Ranks[community] = value
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// meltVacancySheet melts one wide vacancy sheet into long form: one row per
// (college, branch, community). Blank or non-numeric seat cells count as 0.
func meltVacancySheet(sheet model.Sheet) []model.VacancySeat {
	index := headerIndex(sheet.Header)

	collegeCodeCol, okCC := index["COLLEGE CODE"]
	collegeNameCol, okCN := index["COLLEGE NAME"]
	branchCodeCol, okBC := index["BRANCH CODE"]
	branchNameCol, okBN := index["BRANCH NAME"]
	if !okCC || !okCN || !okBC || !okBN {
		return nil
	}

	var seats []model.VacancySeat
	for _, raw := range sheet.Rows {
		collegeCode := cell(raw, collegeCodeCol)
		collegeName := cell(raw, collegeNameCol)
		if collegeCode == "" && collegeName == "" {
			continue
		}

		for _, community := range model.Communities {
			col, ok := index[community]
			if !ok {
				continue
			}
			seats = append(seats, model.VacancySeat{
				CollegeCode: collegeCode,
				CollegeName: collegeName,
				BranchCode:  cell(raw, branchCodeCol),
				BranchName:  cell(raw, branchNameCol),
				Community:   community,
				Seats:       parseSeats(cell(raw, col)),
			})
		}
	}
	return seats
}

// headerIndex maps normalized header names to their column positions.
// Normalization uppercases, collapses embedded newlines and trims, matching
// how the source sheets are cleaned.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeHeader(name)] = i
	}
	return index
}

func normalizeHeader(name string) string {
	return strings.TrimSpace(strings.ToUpper(strings.ReplaceAll(name, "\n", " ")))
}

// column returns the position of a normalized header name, or -1 when the
// sheet lacks it.
func column(index map[string]int, name string) int {
	if col, ok := index[name]; ok {
		return col
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// parseSeats coerces a seat cell to an int, treating anything unparsable as 0.
func parseSeats(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int(parsed)
}

func trimToCommunity(row model.CutoffRow, community string) model.CutoffRow {
	trimmed := row
	trimmed.Cutoffs = make(map[string]float64, 1)
	trimmed.Ranks = make(map[string]float64, 1)
	if value, ok := row.Cutoffs[community]; ok {
		trimmed.Cutoffs[community] = value
	}
	if value, ok := row.Ranks[community]; ok {
		trimmed.Ranks[community] = value
	}
	return trimmed
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
