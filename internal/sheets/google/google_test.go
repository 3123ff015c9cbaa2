package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/config"
	"carteira/internal/core"
	ports "carteira/internal/sheets"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestNewFromConfig_MissingSpreadsheetID(t *testing.T) {
	cfg := config.Defaults()
	cfg.GoogleSpreadsheetID = ""

	_, err := NewFromConfig(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromConfig_InvalidClientJSON(t *testing.T) {
	cfg := config.Defaults()
	cfg.GoogleSpreadsheetID = "test-id"
	cfg.GoogleOAuthClientJSON = "invalid-json"
	cfg.GoogleOAuthTokenJSON = `{"access_token":"test"}`

	_, err := NewFromConfig(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error with invalid JSON")
	}
	if !strings.Contains(err.Error(), "oauth config") {
		t.Errorf("expected oauth config error, got: %v", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{"no client", Credentials{}, "missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)"},
		{"no token", Credentials{ClientJSON: testClientJSON}, "missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSheetsService(context.Background(), tt.creds)
			if err == nil || err.Error() != tt.want {
				t.Errorf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNewSheetsService_FromFiles(t *testing.T) {
	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	tokenFile := filepath.Join(dir, "token.json")
	if err := os.WriteFile(clientFile, []byte(testClientJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"test","token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	svc, err := newSheetsService(context.Background(), Credentials{ClientFile: clientFile, TokenFile: tokenFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("expected a service")
	}
}

func TestLoadJSON(t *testing.T) {
	b, err := loadJSON(`  {"a":1} `, "/does/not/matter")
	if err != nil || string(b) != `{"a":1}` {
		t.Errorf("inline value should win, got %q, %v", b, err)
	}
	if b, err := loadJSON("", ""); b != nil || err != nil {
		t.Errorf("empty sources = %q, %v", b, err)
	}
	if _, err := loadJSON("", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClient_UninitialisedService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions"}

	if _, err := c.Upsert(context.Background(), ports.TransactionRow{}); err == nil || !strings.Contains(err.Error(), "without id") {
		t.Errorf("expected id error, got %v", err)
	}
	if _, err := c.Upsert(context.Background(), ports.TransactionRow{ID: "t1"}); err == nil {
		t.Error("expected error without service")
	}
	if err := c.Remove(context.Background(), "t1"); err == nil {
		t.Error("expected error without service")
	}
}

func TestRowValues(t *testing.T) {
	acc := "acc-1"
	tx := core.Transaction{
		ID:          "t1",
		UserID:      "u1",
		Date:        time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		Description: "Mercado",
		Flow:        core.FlowExpense,
		Amount:      decimal.RequireFromString("40.5"),
		AccountID:   &acc,
		Reconciled:  true,
	}
	got := rowValues(ports.NewTransactionRow(tx, "Food", "Checking"))
	want := []any{"t1", "2024-03-15", "Mercado", "Food", "expense", "40.50", "Checking", "yes", "u1"}

	if len(got) != len(want) || len(got) != len(headerRow()) {
		t.Fatalf("got %d columns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"t1"},
		{},
		{" t3 "},
	}
	tests := []struct {
		id   string
		want int
	}{
		{"t1", 2},
		{"t3", 4},
		{"t9", 0},
		{"ID", 1},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestRowRange(t *testing.T) {
	if got := rowRange("Transactions", 7); got != "Transactions!A7:I7" {
		t.Errorf("rowRange = %q", got)
	}
}
