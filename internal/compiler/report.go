package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Report summarises the security-relevant activity of one compilation run.
type Report struct {
	Template       string        `json:"template"`
	GeneratedAt    time.Time     `json:"generatedAt"`
	AllowHTTP      bool          `json:"allowHttp"`
	BlockLocalhost bool          `json:"blockLocalhost"`
	Interactive    bool          `json:"interactiveAllowlist"`
	Strict         bool          `json:"strict"`
	Fetches        []FetchRecord `json:"fetches"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// WriteReport serialises the report as indented JSON.
func WriteReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("compiler: encode report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("compiler: write report %s: %w", path, err)
	}
	return nil
}
