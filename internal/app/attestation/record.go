package attestation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day, encoded as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date '%s': %w", s, err)
	}
	return Date{Time: t}, nil
}

func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// Int returns the date as the integer YYYYMMDD.
func (d Date) Int() int64 {
	return int64(d.Year())*10000 + int64(d.Month())*100 + int64(d.Day())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AgeOn returns full years elapsed between d and asOf. The subtraction on
// YYYYMMDD integers is exact because MMDD never reaches 10000.
func (d Date) AgeOn(asOf Date) (int, error) {
	if d.IsZero() {
		return 0, fmt.Errorf("date of birth is not set")
	}
	if asOf.Int() < d.Int() {
		return 0, fmt.Errorf("date of birth %s is in the future", d)
	}
	return int((asOf.Int() - d.Int()) / 10000), nil
}

// AttributeRecord is a validated set of identity attributes produced by an
// external credential parser. It is never persisted by this module.
type AttributeRecord struct {
	ReferenceID string `json:"reference_id"`
	Name        string `json:"name"`
	DateOfBirth Date   `json:"date_of_birth"`
	Region      string `json:"region"`
}

// Validate checks presence only; kind-specific checks happen in the engine.
func (r AttributeRecord) Validate() error {
	if strings.TrimSpace(r.ReferenceID) == "" {
		return NewParameterValidationError("", "attribute record is missing reference_id")
	}
	return nil
}

// RegionCode normalises the record's region descriptor to a supported code.
func (r AttributeRecord) RegionCode() (string, bool) {
	return NormalizeRegion(r.Region)
}
