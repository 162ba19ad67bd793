package clinic

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/dental-verify/internal/model"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// Column is one field of the clinic import/export contract.
type Column struct {
	Key   string
	Label string
}

// Columns is the fixed column order of every export. Labels are the
// registry's Arabic headers; imports accept either the label or the key.
var Columns = []Column{
	{"clinic_name", "اسم العيادة"},
	{"license_number", "رقم الترخيص"},
	{"doctor_name", "اسم الطبيب"},
	{"specialization", "التخصص"},
	{"license_status", "حالة الترخيص"},
	{"phone", "رقم الهاتف"},
	{"governorate", "المحافظة"},
	{"city", "المدينة"},
	{"address_details", "تفاصيل العنوان"},
	{"address", "العنوان الكامل"},
	{"issue_date", "تاريخ الإصدار"},
	{"expiry_date", "تاريخ الانتهاء"},
	{"verification_count", "عدد التحقق"},
}

const bom = "\ufeff"

// RowError is an import row that was skipped. Row is the line number in
// the file, the header being line 1.
type RowError struct {
	Row     int    `json:"row"`
	License string `json:"license_number,omitempty"`
	Error   string `json:"error"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`
}

// ExportFilename names an export taken at now, e.g.
// clinics_export_2024-06-01.csv.
func ExportFilename(ext string, now time.Time) string {
	return fmt.Sprintf("clinics_export_%s.%s", now.UTC().Format(model.DateLayout), ext)
}

func headerRow() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Label
	}
	return out
}

func clinicRow(c *model.Clinic) []string {
	return []string{
		c.ClinicName,
		c.LicenseNumber,
		c.DoctorName,
		c.Specialization,
		string(c.LicenseStatus),
		c.Phone,
		c.Governorate,
		c.City,
		c.AddressDetails,
		c.Address,
		dateString(c.IssueDate),
		dateString(c.ExpiryDate),
		strconv.Itoa(c.VerificationCount),
	}
}

func dateString(d *model.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// ExportCSV writes every clinic, newest first, as UTF-8 CSV with a byte
// order mark so spreadsheet tools pick the right encoding.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	clinics, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list clinics: %w", err)
	}
	if _, err := io.WriteString(w, bom); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(headerRow()); err != nil {
		return 0, err
	}
	for _, c := range clinics {
		if err := cw.Write(clinicRow(c)); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to write csv: %w", err)
	}
	return len(clinics), nil
}

// ImportCSV creates one clinic per data row. Columns are matched by header,
// so order does not matter and missing columns default to empty. Rows are
// taken as exported: only the license number, status and date columns are
// checked. Bad rows are reported and skipped.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewBadRequest("csv file is empty", nil)
		}
		return nil, apperrors.NewBadRequest("failed to read csv header", err)
	}
	index := headerIndex(header)
	if _, ok := index["license_number"]; !ok {
		return nil, apperrors.NewBadRequest("csv file has no license number column", nil)
	}

	result := &ImportResult{}
	row := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				row = perr.StartLine
			} else {
				row++
			}
			result.fail(row, "", err)
			continue
		}
		row, _ = cr.FieldPos(0)
		if blank(record) {
			continue
		}

		get := func(key string) string {
			i, ok := index[key]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		clinic, err := parseRow(get)
		if err == nil {
			err = s.importClinic(ctx, clinic)
		}
		if err != nil {
			result.fail(row, get("license_number"), err)
			continue
		}
		result.Imported++
	}

	s.logger.Info("clinics imported", "imported", result.Imported, "failed", result.Failed)
	return result, nil
}

// importClinic stores a parsed row. Unlike CreateClinic it requires nothing
// beyond a free license number and a known status.
func (s *Service) importClinic(ctx context.Context, clinic *model.Clinic) error {
	normalize(clinic)
	if clinic.LicenseNumber == "" {
		return apperrors.NewBadRequest("license number is required", nil)
	}
	if clinic.LicenseStatus == "" {
		clinic.LicenseStatus = model.LicenseStatusActive
	}
	if !clinic.LicenseStatus.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown license status %q", clinic.LicenseStatus), nil)
	}
	if err := s.ensureLicenseFree(ctx, clinic.LicenseNumber, ""); err != nil {
		return err
	}

	now := s.now().UTC()
	clinic.Address = FormatAddress(clinic.Governorate, clinic.City, clinic.AddressDetails)
	clinic.CreatedAt = now
	clinic.UpdatedAt = now
	if err := s.repo.Create(ctx, clinic); err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

func (r *ImportResult) fail(row int, license string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{Row: row, License: license, Error: err.Error()})
}

func parseRow(get func(string) string) (*model.Clinic, error) {
	c := &model.Clinic{
		ClinicName:     get("clinic_name"),
		LicenseNumber:  get("license_number"),
		DoctorName:     get("doctor_name"),
		Specialization: get("specialization"),
		LicenseStatus:  model.LicenseStatus(get("license_status")),
		Phone:          get("phone"),
		Governorate:    get("governorate"),
		City:           get("city"),
		AddressDetails: get("address_details"),
	}
	var err error
	if c.IssueDate, err = optionalDate(get("issue_date")); err != nil {
		return nil, apperrors.NewBadRequest("invalid issue date", err)
	}
	if c.ExpiryDate, err = optionalDate(get("expiry_date")); err != nil {
		return nil, apperrors.NewBadRequest("invalid expiry date", err)
	}
	if v := get("verification_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperrors.NewBadRequest("invalid verification count", err)
		}
		c.VerificationCount = n
	}
	return c, nil
}

func optionalDate(s string) (*model.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func headerIndex(header []string) map[string]int {
	lookup := map[string]string{}
	for _, c := range Columns {
		lookup[c.Label] = c.Key
		lookup[c.Key] = c.Key
	}
	index := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, bom))
		if key, ok := lookup[h]; ok {
			index[key] = i
		} else if key, ok := lookup[strings.ToLower(h)]; ok {
			index[key] = i
		}
	}
	return index
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if ch, _, err := br.ReadRune(); err == nil && ch != '\ufeff' {
		_ = br.UnreadRune()
	}
	return br
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
