package reference

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"goimomi/app"
	"goimomi/config"
	"goimomi/models"

	"gorm.io/gorm"
)

//go:embed seeddata
var seedFS embed.FS

var ErrUnknownTable = errors.New("unknown seed table")

// SeedResult counts what one seed run changed.
type SeedResult struct {
	Table   string
	Policy  config.SeedPolicy
	Created int
	Updated int
	Deleted int
}

func (r SeedResult) String() string {
	return fmt.Sprintf("%s (%s): %d created, %d updated, %d deleted", r.Table, r.Policy, r.Created, r.Updated, r.Deleted)
}

type seedFunc func(tx *gorm.DB, policy config.SeedPolicy) (SeedResult, error)

var seeders = map[string]seedFunc{
	TableCountries:         seedCountries,
	TableDestinations:      seedDestinations,
	TableStartingCities:    seedStartingCities,
	TableNationalities:     seedNationalities,
	TableUmrahDestinations: seedUmrahDestinations,
}

// SeedTables lists the tables Seed knows, sorted.
func SeedTables() []string {
	names := make([]string, 0, len(seeders))
	for name := range seeders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seed loads the bundled rows for table in one transaction. An empty policy
// falls back to the configured policy for the table.
func Seed(ctx context.Context, a *app.App, table string, policy config.SeedPolicy) (SeedResult, error) {
	seed, ok := seeders[table]
	if !ok {
		return SeedResult{}, fmt.Errorf("%w %q", ErrUnknownTable, table)
	}
	if policy == "" {
		policy = a.Cfg.SeedPolicies[table]
	}
	if !policy.Valid() {
		return SeedResult{}, fmt.Errorf("invalid seed policy %q for %s", policy, table)
	}

	var res SeedResult
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = seed(tx, policy)
		return err
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed %s: %w", table, err)
	}
	res.Table, res.Policy = table, policy
	a.Cache.Invalidate(ctx, table)
	return res, nil
}

// upsert applies policy to rows. match selects the existing row a seed row
// corresponds to; refresh copies descriptive fields onto it and reports
// whether anything changed.
func upsert[T any](tx *gorm.DB, rows []T, policy config.SeedPolicy, match func(*T) map[string]any, refresh func(dst, src *T) bool) (SeedResult, error) {
	var res SeedResult
	if policy == config.SeedReplace {
		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(T))
		if del.Error != nil {
			return res, del.Error
		}
		res.Deleted = int(del.RowsAffected)
	}

	for i := range rows {
		row := &rows[i]
		var existing T
		err := tx.Where(match(row)).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(row).Error; err != nil {
				return res, err
			}
			res.Created++
		case err != nil:
			return res, err
		case policy == config.SeedOverwrite && refresh != nil && refresh(&existing, row):
			if err := tx.Save(&existing).Error; err != nil {
				return res, err
			}
			res.Updated++
		}
	}
	return res, nil
}

func byName(name string) map[string]any { return map[string]any{"name": name} }

func seedCountries(tx *gorm.DB, policy config.SeedPolicy) (SeedResult, error) {
	raw, err := seedFS.ReadFile("seeddata/countries.txt")
	if err != nil {
		return SeedResult{}, err
	}
	var rows []models.Country
	for _, line := range strings.Split(string(raw), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			rows = append(rows, models.Country{Name: name})
		}
	}
	return upsert(tx, rows, policy, func(c *models.Country) map[string]any { return byName(c.Name) }, nil)
}

func seedDestinations(tx *gorm.DB, policy config.SeedPolicy) (SeedResult, error) {
	var groups []struct {
		Region  string   `json:"region"`
		Country string   `json:"country"`
		Cities  []string `json:"cities"`
	}
	if err := readJSON("seeddata/destinations.json", &groups); err != nil {
		return SeedResult{}, err
	}
	var rows []models.Destination
	for _, g := range groups {
		for _, city := range g.Cities {
			rows = append(rows, models.Destination{Name: city, Region: g.Region, City: city, Country: g.Country})
		}
	}
	return upsert(tx, rows, policy,
		func(d *models.Destination) map[string]any { return byName(d.Name) },
		func(dst, src *models.Destination) bool {
			if dst.Region == src.Region && dst.City == src.City && dst.Country == src.Country {
				return false
			}
			dst.Region, dst.City, dst.Country = src.Region, src.City, src.Country
			return true
		})
}

func seedStartingCities(tx *gorm.DB, policy config.SeedPolicy) (SeedResult, error) {
	var groups []struct {
		Region string   `json:"region"`
		Names  []string `json:"names"`
	}
	if err := readJSON("seeddata/starting_cities.json", &groups); err != nil {
		return SeedResult{}, err
	}
	var rows []models.StartingCity
	for _, g := range groups {
		for _, name := range g.Names {
			rows = append(rows, models.StartingCity{Name: name, Region: g.Region})
		}
	}
	return upsert(tx, rows, policy,
		func(c *models.StartingCity) map[string]any { return byName(c.Name) },
		func(dst, src *models.StartingCity) bool {
			if dst.Region == src.Region {
				return false
			}
			dst.Region = src.Region
			return true
		})
}

func seedNationalities(tx *gorm.DB, policy config.SeedPolicy) (SeedResult, error) {
	raw, err := seedFS.ReadFile("seeddata/nationalities.txt")
	if err != nil {
		return SeedResult{}, err
	}
	rows, err := ParseNationalities(bytes.NewReader(raw))
	if err != nil {
		return SeedResult{}, err
	}
	return upsert(tx, rows, policy,
		func(n *models.Nationality) map[string]any {
			return map[string]any{"country": n.Country, "nationality": n.Nationality}
		},
		func(dst, src *models.Nationality) bool {
			if dst.Continent == src.Continent {
				return false
			}
			dst.Continent = src.Continent
			return true
		})
}

func seedUmrahDestinations(tx *gorm.DB, policy config.SeedPolicy) (SeedResult, error) {
	var rows []models.UmrahDestination
	if err := readJSON("seeddata/umrah_destinations.json", &rows); err != nil {
		return SeedResult{}, err
	}
	return upsert(tx, rows, policy, func(u *models.UmrahDestination) map[string]any {
		return map[string]any{"name": u.Name, "country": u.Country}
	}, nil)
}

func readJSON(name string, dst any) error {
	raw, err := seedFS.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

const (
	nationalitySep = "–"
	otherHeading   = "Other / Special"
	otherContinent = "Other"
)

// ParseNationalities reads "Country – Nationality" lines grouped under
// continent headings such as "Africa (54)". Blank lines are ignored.
func ParseNationalities(r io.Reader) ([]models.Nationality, error) {
	var (
		out       []models.Nationality
		continent string
		lineNo    int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == otherHeading:
			continent = otherContinent
			continue
		case strings.Contains(line, "(") && !strings.Contains(line, nationalitySep):
			continent = strings.TrimSpace(line[:strings.Index(line, "(")])
			continue
		}

		country, nationality, ok := strings.Cut(line, nationalitySep)
		if !ok {
			continue
		}
		if continent == "" {
			return nil, fmt.Errorf("line %d: %q appears before any continent heading", lineNo, line)
		}
		out = append(out, models.Nationality{
			Country:     strings.TrimSpace(country),
			Nationality: strings.TrimSpace(nationality),
			Continent:   continent,
		})
	}
	return out, sc.Err()
}
