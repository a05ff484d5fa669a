package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lherron/incsync/internal/domain"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q): expected %q (err=%v), got %q (%v)", tt.in, tt.want, tt.wantErr, got, err)
		}
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{})
	err := r.RenderTable([]string{"ID", "SEVERITY", "FIELD"}, [][]string{
		{"0001-auth", "CRITICAL", "status"},
		{"0002-search", "LOW", "AC-US1-01"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "ID           SEVERITY  FIELD\n" +
		"-----------  --------  ---------\n" +
		"0001-auth    CRITICAL  status\n" +
		"0002-search  LOW       AC-US1-01\n"
	if buf.String() != want {
		t.Errorf("unexpected table:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestRenderTable_Porcelain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Porcelain: true})
	if err := r.RenderTable([]string{"ID", "STATUS"}, [][]string{{"0001-auth", "active"}}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "ID\tSTATUS\n0001-auth\tactive\n" {
		t.Errorf("unexpected porcelain output %q", buf.String())
	}
}

func TestRender_Structured(t *testing.T) {
	data := map[string]int{"total": 2}
	tableCalled := false
	table := func() error { tableCalled = true; return nil }

	var buf bytes.Buffer
	if err := NewRenderer(&buf, Options{Format: FormatJSON}).Render(data, table); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"total": 2`) {
		t.Errorf("expected indented JSON, got %q", buf.String())
	}

	buf.Reset()
	if err := NewRenderer(&buf, Options{Format: FormatYAML}).Render(data, table); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "total: 2\n" {
		t.Errorf("expected YAML, got %q", buf.String())
	}
	if tableCalled {
		t.Error("table renderer must not run for structured output")
	}

	if err := NewRenderer(&buf, Options{}).Render(data, table); err != nil || !tableCalled {
		t.Error("expected table renderer for the default format")
	}
}

func TestSeverity_PlainWithoutColor(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, Options{})
	if got := r.Severity(domain.SeverityCritical); got != "CRITICAL" {
		t.Errorf("expected plain label, got %q", got)
	}
	if got := r.OK("in sync"); got != "in sync" {
		t.Errorf("expected plain text, got %q", got)
	}
}
