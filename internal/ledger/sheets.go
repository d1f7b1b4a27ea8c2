package ledger

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// SheetsLedger keeps one "email | pin" row per account in a Google spreadsheet
type SheetsLedger struct {
	values        valuesAPI
	spreadsheetID string
	sheet         string
	mu            sync.Mutex
}

// valuesAPI is the subset of the Sheets values service the ledger needs
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Update(ctx context.Context, spreadsheetID, rng string, row []interface{}) error
	Append(ctx context.Context, spreadsheetID, rng string, row []interface{}) error
}

// NewSheetsLedger creates a ledger using the service account in credentialsFile.
// An empty credentialsFile falls back to application default credentials.
func NewSheetsLedger(ctx context.Context, spreadsheetID, sheet, credentialsFile string) (*SheetsLedger, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	return newSheetsLedger(&googleValues{svc: svc.Spreadsheets.Values}, spreadsheetID, sheet), nil
}

func newSheetsLedger(values valuesAPI, spreadsheetID, sheet string) *SheetsLedger {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &SheetsLedger{values: values, spreadsheetID: spreadsheetID, sheet: sheet}
}

// Upsert rewrites the row of email, or appends one when the email is absent.
// Column A holds the email, column B the PIN.
func (l *SheetsLedger) Upsert(ctx context.Context, email, pin string) (Result, error) {
	email = normalizeEmail(email)

	// read-then-write must not interleave or two rows could be appended for one email
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.values.Get(ctx, l.spreadsheetID, l.sheet+"!A:B")
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger sheet: %w", err)
	}

	row := []interface{}{email, pin}
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		if normalizeEmail(fmt.Sprint(r[0])) != email {
			continue
		}
		rng := fmt.Sprintf("%s!A%d:B%d", l.sheet, i+1, i+1)
		if err := l.values.Update(ctx, l.spreadsheetID, rng, row); err != nil {
			return 0, fmt.Errorf("failed to update ledger row: %w", err)
		}
		return Updated, nil
	}

	if err := l.values.Append(ctx, l.spreadsheetID, l.sheet+"!A:B", row); err != nil {
		return 0, fmt.Errorf("failed to append ledger row: %w", err)
	}
	return Inserted, nil
}

// googleValues adapts *sheets.SpreadsheetsValuesService to valuesAPI
type googleValues struct {
	svc *sheets.SpreadsheetsValuesService
}

func (g *googleValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := g.svc.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Update(ctx context.Context, spreadsheetID, rng string, row []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := g.svc.Update(spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (g *googleValues) Append(ctx context.Context, spreadsheetID, rng string, row []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := g.svc.Append(spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
